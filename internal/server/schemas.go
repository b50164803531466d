package server

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Embedded payload schemas. They only pin the fields the normalizers
// read; providers add fields freely.
const (
	schemaJira         = "jira.json"
	schemaGitHubIssues = "github_issues.json"
	schemaAzure        = "azure.json"
)

const schemaBaseURL = "https://tasksync.invalid/schemas/"

//go:embed schemas/*.json
var schemaFiles embed.FS

type schemaSet struct {
	byName map[string]*jsonschema.Schema
}

func mustCompileSchemas() *schemaSet {
	set, err := compileSchemas()
	if err != nil {
		panic(err)
	}
	return set
}

func compileSchemas() (*schemaSet, error) {
	c := jsonschema.NewCompiler()
	names := []string{schemaJira, schemaGitHubIssues, schemaAzure}

	for _, name := range names {
		data, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", name, err)
		}
	}

	set := &schemaSet{byName: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		set.byName[name] = sch
	}
	return set, nil
}

// validate checks body against the named schema. Malformed JSON fails
// here too.
func (s *schemaSet) validate(name string, body []byte) error {
	sch, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown schema %s", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("payload does not match %s: %w", name, err)
	}
	return nil
}
