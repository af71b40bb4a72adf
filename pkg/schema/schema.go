package schema

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ErrNoProtoFiles is returned when Parse is called without any proto files.
var ErrNoProtoFiles = errors.New("no proto files specified")

// Schema holds compiled .proto file(s) and provides access to service,
// method, and message descriptors.
type Schema struct {
	files    []protoreflect.FileDescriptor
	services map[string]*Service
}

// Service describes a gRPC service and its methods.
type Service struct {
	// Name is the fully qualified service name (e.g., "package.ServiceName").
	Name string

	// Methods maps method names to their descriptors.
	Methods map[string]*Method

	desc protoreflect.ServiceDescriptor
}

// Method describes a gRPC method including its streaming characteristics.
type Method struct {
	// Name is the method name.
	Name string

	// FullName is the fully qualified method name (e.g., "package.Service.Method").
	FullName string

	// InputType is the fully qualified name of the request message type.
	InputType string

	// OutputType is the fully qualified name of the response message type.
	OutputType string

	// ClientStreaming indicates if the client streams requests.
	ClientStreaming bool

	// ServerStreaming indicates if the server streams responses.
	ServerStreaming bool

	desc protoreflect.MethodDescriptor
}

// New assembles a Schema from pre-built services. Most callers should use
// Parse; New exists for programmatic assembly.
func New(services ...*Service) *Schema {
	sch := &Schema{services: make(map[string]*Service, len(services))}
	for _, svc := range services {
		sch.services[svc.Name] = svc
	}
	return sch
}

// ParseFile compiles a single .proto file.
// importPaths specifies directories to search for imported files.
func ParseFile(path string, importPaths []string) (*Schema, error) {
	return Parse([]string{path}, importPaths)
}

// Parse compiles multiple .proto files into a unified Schema.
// importPaths specifies directories to search for imported files.
func Parse(paths []string, importPaths []string) (*Schema, error) {
	if len(paths) == 0 {
		return nil, ErrNoProtoFiles
	}

	resolver := &protocompile.SourceResolver{
		ImportPaths: importPaths,
		Accessor:    protocompile.SourceAccessorFromMap(nil),
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(
			protocompile.CompositeResolver{
				resolver,
				&fileSystemResolver{importPaths: importPaths, basePaths: paths},
			},
		),
	}

	compiled, err := compiler.Compile(context.Background(), paths...)
	if err != nil {
		return nil, err
	}

	sch := &Schema{
		files:    make([]protoreflect.FileDescriptor, 0, len(compiled)),
		services: make(map[string]*Service),
	}

	for _, file := range compiled {
		sch.files = append(sch.files, file)

		services := file.Services()
		for i := 0; i < services.Len(); i++ {
			svc := services.Get(i)
			service := &Service{
				Name:    string(svc.FullName()),
				Methods: make(map[string]*Method),
				desc:    svc,
			}

			methods := svc.Methods()
			for j := 0; j < methods.Len(); j++ {
				m := methods.Get(j)
				service.Methods[string(m.Name())] = &Method{
					Name:            string(m.Name()),
					FullName:        string(m.FullName()),
					InputType:       string(m.Input().FullName()),
					OutputType:      string(m.Output().FullName()),
					ClientStreaming: m.IsStreamingClient(),
					ServerStreaming: m.IsStreamingServer(),
					desc:            m,
				}
			}

			sch.services[string(svc.FullName())] = service
		}
	}

	return sch, nil
}

// fileSystemResolver implements protocompile.Resolver for file system access.
type fileSystemResolver struct {
	importPaths []string
	basePaths   []string
}

func (r *fileSystemResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	candidates := make([]string, 0, len(r.importPaths)+len(r.basePaths)+1)
	for _, importPath := range r.importPaths {
		candidates = append(candidates, filepath.Join(importPath, path))
	}
	// Imports may also live next to the files being compiled.
	for _, basePath := range r.basePaths {
		candidates = append(candidates, filepath.Join(filepath.Dir(basePath), path))
	}
	candidates = append(candidates, path)

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		rc, err := openFile(candidate)
		if err != nil {
			return protocompile.SearchResult{}, err
		}
		return protocompile.SearchResult{Source: rc}, nil
	}

	return protocompile.SearchResult{}, fs.ErrNotExist
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetService returns a service by its fully qualified name, or nil.
func (s *Schema) GetService(name string) *Service {
	return s.services[name]
}

// ListServices returns all service names in sorted order.
func (s *Schema) ListServices() []string {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindMessage looks up a message descriptor by fully qualified name across
// all compiled files, including transitive imports. Returns nil if absent.
func (s *Schema) FindMessage(fullName string) protoreflect.MessageDescriptor {
	name := protoreflect.FullName(fullName)
	seen := make(map[string]bool)

	var walk func(file protoreflect.FileDescriptor) protoreflect.MessageDescriptor
	walk = func(file protoreflect.FileDescriptor) protoreflect.MessageDescriptor {
		if seen[file.Path()] {
			return nil
		}
		seen[file.Path()] = true
		if d := findDescriptor(file, name); d != nil {
			if md, ok := d.(protoreflect.MessageDescriptor); ok {
				return md
			}
		}
		imports := file.Imports()
		for i := 0; i < imports.Len(); i++ {
			if md := walk(imports.Get(i).FileDescriptor); md != nil {
				return md
			}
		}
		return nil
	}

	for _, file := range s.files {
		if md := walk(file); md != nil {
			return md
		}
	}
	return nil
}

func findDescriptor(file protoreflect.FileDescriptor, name protoreflect.FullName) protoreflect.Descriptor {
	if !name.IsValid() {
		return nil
	}
	msgs := file.Messages()
	for i := 0; i < msgs.Len(); i++ {
		if d := findNested(msgs.Get(i), name); d != nil {
			return d
		}
	}
	return nil
}

func findNested(md protoreflect.MessageDescriptor, name protoreflect.FullName) protoreflect.Descriptor {
	if md.FullName() == name {
		return md
	}
	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		if d := findNested(nested.Get(i), name); d != nil {
			return d
		}
	}
	return nil
}

// Files returns the compiled file descriptors.
func (s *Schema) Files() []protoreflect.FileDescriptor {
	return s.files
}

// ServiceCount returns the number of services in the schema.
func (s *Schema) ServiceCount() int {
	return len(s.services)
}

// MethodCount returns the total number of methods across all services.
func (s *Schema) MethodCount() int {
	count := 0
	for _, svc := range s.services {
		count += len(svc.Methods)
	}
	return count
}

// GetMethod returns a method by name, or nil.
func (s *Service) GetMethod(name string) *Method {
	return s.Methods[name]
}

// ListMethods returns all method names in sorted order.
func (s *Service) ListMethods() []string {
	names := make([]string, 0, len(s.Methods))
	for name := range s.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptor returns the underlying protoreflect service descriptor.
func (s *Service) Descriptor() protoreflect.ServiceDescriptor {
	return s.desc
}

// IsUnary returns true if the method streams in neither direction.
func (m *Method) IsUnary() bool {
	return !m.ClientStreaming && !m.ServerStreaming
}

// IsServerStreaming returns true if only the server streams responses.
func (m *Method) IsServerStreaming() bool {
	return !m.ClientStreaming && m.ServerStreaming
}

// IsClientStreaming returns true if only the client streams requests.
func (m *Method) IsClientStreaming() bool {
	return m.ClientStreaming && !m.ServerStreaming
}

// IsBidirectional returns true if both client and server stream.
func (m *Method) IsBidirectional() bool {
	return m.ClientStreaming && m.ServerStreaming
}

// StreamKind returns a string describing the call shape.
func (m *Method) StreamKind() string {
	switch {
	case m.IsBidirectional():
		return "bidirectional"
	case m.IsClientStreaming():
		return "client_streaming"
	case m.IsServerStreaming():
		return "server_streaming"
	default:
		return "unary"
	}
}

// Descriptor returns the underlying protoreflect method descriptor.
func (m *Method) Descriptor() protoreflect.MethodDescriptor {
	return m.desc
}

// Input returns the message descriptor for the request type.
func (m *Method) Input() protoreflect.MessageDescriptor {
	if m.desc == nil {
		return nil
	}
	return m.desc.Input()
}

// Output returns the message descriptor for the response type.
func (m *Method) Output() protoreflect.MessageDescriptor {
	if m.desc == nil {
		return nil
	}
	return m.desc.Output()
}

// Ensure linker.File satisfies protoreflect.FileDescriptor at compile time.
var _ protoreflect.FileDescriptor = (linker.File)(nil)
