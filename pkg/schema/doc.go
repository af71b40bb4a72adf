// Package schema compiles Protocol Buffer definition files (.proto) into
// reflection descriptors and exposes the service and method model that the
// rest of protomock works against.
//
// The package uses bufbuild/protocompile, which produces fully linked
// descriptors: every field's message, enum, and map types are resolved at
// compile time, so downstream consumers never need a lazy-resolution path.
//
//	sch, err := schema.ParseFile("api/service.proto", []string{"api/"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, name := range sch.ListServices() {
//	    svc := sch.GetService(name)
//	    for _, m := range svc.ListMethods() {
//	        fmt.Println(name, m, svc.GetMethod(m).StreamKind())
//	    }
//	}
package schema
