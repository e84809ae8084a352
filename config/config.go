package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	gqlgenconfig "github.com/99designs/gqlgen/codegen/config"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const DefaultQueryExt = "graphql"

var DefaultPythonVersion = PythonVersion{Major: 3, Minor: 10}

// Config represents the config file.
type Config struct {
	SchemaFilename gqlgenconfig.StringList `yaml:"schema,omitempty"`
	Endpoint       *EndPointConfig         `yaml:"endpoint,omitempty"`
	Query          gqlgenconfig.StringList `yaml:"query"`
	QueryExt       string                  `yaml:"query_ext,omitempty"`
	// OutputPath, when set, collects every operation into this one file.
	// Otherwise each query file gets a Python module next to it.
	OutputPath    string                  `yaml:"output_path,omitempty"`
	ScalarMap     map[string]ScalarConfig `yaml:"scalar_map,omitempty"`
	Inherit       []InheritConfig         `yaml:"inherit,omitempty"`
	PythonVersion PythonVersion           `yaml:"python_version,omitempty"`
	Schema        *ast.Schema             `yaml:"-"`
}

// ScalarConfig maps a GraphQL scalar to a Python type.
// Serializer and Deserializer are expressions where {value} stands for the value.
type ScalarConfig struct {
	PythonType   string                  `yaml:"python_type"`
	Import       gqlgenconfig.StringList `yaml:"import,omitempty"`
	Serializer   string                  `yaml:"serializer,omitempty"`
	Deserializer string                  `yaml:"deserializer,omitempty"`
}

// InheritConfig is a base class of every generated operation class.
// {Input} and {Response} in Inherit are replaced by the operation's types.
type InheritConfig struct {
	Inherit string                  `yaml:"inherit"`
	Import  gqlgenconfig.StringList `yaml:"import,omitempty"`
}

// EndPointConfig are the allowed options for the 'endpoint' config.
type EndPointConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Client  *http.Client      `yaml:"-"`
}

func (e *EndPointConfig) header() http.Header {
	header := make(http.Header, len(e.Headers))
	for k, v := range e.Headers {
		header.Set(k, v)
	}
	return header
}

// PythonVersion is the Python version the generated code targets.
type PythonVersion struct {
	Major int
	Minor int
}

func ParsePythonVersion(s string) (PythonVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return PythonVersion{}, fmt.Errorf("invalid python_version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return PythonVersion{}, fmt.Errorf("invalid python_version %q: %w", s, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return PythonVersion{}, fmt.Errorf("invalid python_version %q: %w", s, err)
	}
	return PythonVersion{Major: major, Minor: minor}, nil
}

// Before reports whether v is older than major.minor.
func (v PythonVersion) Before(major, minor int) bool {
	return v.Major < major || (v.Major == major && v.Minor < minor)
}

func (v PythonVersion) IsZero() bool {
	return v == PythonVersion{}
}

func (v PythonVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// UnmarshalYAML reads the raw scalar so an unquoted 3.10 is not taken as 3.1.
func (v *PythonVersion) UnmarshalYAML(b []byte) error {
	parsed, err := ParsePythonVersion(strings.Trim(strings.TrimSpace(string(b)), `"'`))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// LoadConfig loads and parses the config file.
func LoadConfig(configFilename string) (*Config, error) {
	configContent, err := os.ReadFile(configFilename)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var c Config

	yamlDecoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(configContent)))), yaml.DisallowUnknownField())
	if err := yamlDecoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}

	// validation
	if c.SchemaFilename != nil && c.Endpoint != nil {
		return nil, errors.New("'schema' and 'endpoint' both specified. Use schema to load from a local file, use endpoint to load from a remote server (using introspection)")
	}

	if c.SchemaFilename == nil && c.Endpoint == nil {
		return nil, errors.New("neither 'schema' nor 'endpoint' specified. Use schema to load from a local file, use endpoint to load from a remote server (using introspection)")
	}

	if len(c.Query) == 0 {
		return nil, errors.New("'query' is not specified")
	}

	for name, scalar := range c.ScalarMap {
		if scalar.PythonType == "" {
			return nil, fmt.Errorf("scalar_map.%s: 'python_type' is not specified", name)
		}
	}

	for i, inherit := range c.Inherit {
		if inherit.Inherit == "" {
			return nil, fmt.Errorf("inherit[%d]: 'inherit' is not specified", i)
		}
	}

	// defaults
	if c.QueryExt == "" {
		c.QueryExt = DefaultQueryExt
	}
	c.QueryExt = strings.TrimPrefix(c.QueryExt, ".")

	if c.PythonVersion.IsZero() {
		c.PythonVersion = DefaultPythonVersion
	}

	if c.SchemaFilename != nil {
		schemaFilename, err := expandPatterns(c.SchemaFilename, "schema")
		if err != nil {
			return nil, err
		}
		c.SchemaFilename = schemaFilename
	}

	return &c, nil
}

// LoadSchema loads the schema from the local files or by introspecting the endpoint.
func (c *Config) LoadSchema(ctx context.Context) error {
	switch {
	case c.SchemaFilename != nil:
		sources, err := schemaFileSources(c.SchemaFilename)
		if err != nil {
			return err
		}
		schema, err := gqlparser.LoadSchema(sources...)
		if err != nil {
			return fmt.Errorf("load local schema failed: %w", err)
		}
		c.Schema = schema
	case c.Endpoint != nil:
		httpClient := c.Endpoint.Client
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		schema, err := introspectionSchema(ctx, httpClient, c.Endpoint.URL, c.Endpoint.header())
		if err != nil {
			return fmt.Errorf("introspect schema failed: %w", err)
		}
		c.Schema = schema
	default:
		return errors.New("neither 'schema' nor 'endpoint' specified. Use schema to load from a local file, use endpoint to load from a remote server (using introspection)")
	}

	// sort Implements to ensure a deterministic output
	for _, implements := range c.Schema.Implements {
		slices.SortFunc(implements, func(a, b *ast.Definition) int {
			return strings.Compare(a.Name, b.Name)
		})
	}

	return nil
}

// QueryFiles returns the query files named by 'query'. Directories are walked
// for files with the query extension. The result is sorted.
func (c *Config) QueryFiles() ([]string, error) {
	var files []string
	for _, q := range c.Query {
		info, err := os.Stat(q)
		if err == nil && info.IsDir() {
			if err := filepath.WalkDir(q, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && filepath.Ext(path) == "."+c.QueryExt {
					files = append(files, path)
				}
				return nil
			}); err != nil {
				return nil, fmt.Errorf("failed to walk query at root %s: %w", q, err)
			}
			continue
		}

		matches, err := expandPatterns([]string{q}, "query")
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// IsQueryFile reports whether path has the query extension.
func (c *Config) IsQueryFile(path string) bool {
	return filepath.Ext(path) == "."+c.QueryExt
}

var path2regex = strings.NewReplacer(
	`.`, `\.`,
	`*`, `.+`,
	`\`, `[\\/]`,
	`/`, `[\\/]`,
)

// expandPatterns expands glob patterns. A "**" segment matches any number of
// directories.
func expandPatterns(patterns []string, what string) ([]string, error) {
	var files []string
	for _, f := range patterns {
		var matches []string
		if strings.Contains(f, "**") {
			pathParts := strings.SplitN(f, "**", 2)
			rest := strings.TrimPrefix(strings.TrimPrefix(pathParts[1], `\`), `/`)
			globRe := regexp.MustCompile(path2regex.Replace(rest) + `$`)

			if err := filepath.Walk(pathParts[0], func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if globRe.MatchString(strings.TrimPrefix(path, pathParts[0])) {
					matches = append(matches, path)
				}
				return nil
			}); err != nil {
				return nil, fmt.Errorf("failed to walk %s at root %s: %w", what, pathParts[0], err)
			}
		} else {
			var err error
			matches, err = filepath.Glob(f)
			if err != nil {
				return nil, fmt.Errorf("failed to glob %s filename %s: %w", what, f, err)
			}
		}

		for _, m := range matches {
			if !slices.Contains(files, m) {
				files = append(files, m)
			}
		}
	}

	return files, nil
}

func schemaFileSources(schemaFilenames []string) ([]*ast.Source, error) {
	sources := make([]*ast.Source, 0, len(schemaFilenames))
	for _, filename := range schemaFilenames {
		filename = filepath.ToSlash(filename)
		schemaRaw, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to open schema: %w", err)
		}
		sources = append(sources, &ast.Source{Name: filename, Input: string(schemaRaw)})
	}
	return sources, nil
}

// FindConfigFile searches for the first config file in dir and its parents.
func FindConfigFile(dir string, filenames []string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("unable to get absolute path: %w", err)
	}

	for {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("unable to find config file, tried %s", strings.Join(filenames, ", "))
		}
		dir = parent
	}
}
