package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getmockd/protomock/pkg/schema"
	"github.com/spf13/cobra"
)

var (
	describeImportPaths []string
	describeJSON        bool
)

var describeCmd = &cobra.Command{
	Use:   "describe <proto files...>",
	Short: "List the services and methods a set of proto files declares",
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringSliceVarP(&describeImportPaths, "import", "I", nil, "Import path for proto includes")
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "Output as JSON")
}

type methodInfo struct {
	Name       string `json:"name"`
	InputType  string `json:"inputType"`
	OutputType string `json:"outputType"`
	Streaming  string `json:"streaming,omitempty"`
}

type serviceInfo struct {
	Name    string       `json:"name"`
	Methods []methodInfo `json:"methods"`
}

func runDescribe(_ *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errors.New("at least one proto file is required")
	}

	sch, err := schema.Parse(args, describeImportPaths)
	if err != nil {
		return fmt.Errorf("failed to compile proto files: %w", err)
	}

	var services []serviceInfo
	for _, svcName := range sch.ListServices() {
		svc := sch.GetService(svcName)
		si := serviceInfo{Name: svc.Name}
		for _, methodName := range svc.ListMethods() {
			method := svc.GetMethod(methodName)
			mi := methodInfo{
				Name:       method.Name,
				InputType:  method.InputType,
				OutputType: method.OutputType,
			}
			switch {
			case method.IsBidirectional():
				mi.Streaming = "bidirectional"
			case method.IsClientStreaming():
				mi.Streaming = "client"
			case method.IsServerStreaming():
				mi.Streaming = "server"
			}
			si.Methods = append(si.Methods, mi)
		}
		services = append(services, si)
	}

	if describeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"files": args, "services": services})
	}

	if len(services) == 0 {
		fmt.Println("No services found")
		return nil
	}

	fmt.Printf("Proto: %s\n\n", strings.Join(args, ", "))
	for _, si := range services {
		fmt.Printf("Service: %s\n", si.Name)
		for _, mi := range si.Methods {
			streamInfo := ""
			if mi.Streaming != "" {
				streamInfo = fmt.Sprintf(" [%s streaming]", mi.Streaming)
			}
			fmt.Printf("  %s(%s) -> %s%s\n", mi.Name, mi.InputType, mi.OutputType, streamInfo)
		}
		fmt.Println()
	}
	return nil
}
