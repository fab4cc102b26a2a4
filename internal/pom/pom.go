// Package pom reads the declared project version from a Maven pom.xml.
//
// Only the handful of elements needed to determine the version are decoded:
// the project's own <version>, the <parent><version> it inherits from when
// the former is absent, and <properties> so that CI-friendly placeholders
// such as ${revision} can be resolved.
package pom

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the conventional Maven project descriptor name.
const FileName = "pom.xml"

// ErrNoVersion indicates the descriptor declares no version, neither
// directly nor through its parent.
var ErrNoVersion = errors.New("project declares no version")

type project struct {
	XMLName    xml.Name   `xml:"project"`
	Version    string     `xml:"version"`
	Parent     *parent    `xml:"parent"`
	Properties properties `xml:"properties"`
}

type parent struct {
	Version string `xml:"version"`
}

type properties struct {
	Entries []property `xml:",any"`
}

type property struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Reader reads the project version from the pom.xml in Dir.
type Reader struct {
	// Dir is the project directory containing pom.xml.
	Dir string
}

// NewReader returns a Reader for the project in dir.
func NewReader(dir string) *Reader {
	return &Reader{Dir: dir}
}

// Path returns the absolute-or-relative path of the descriptor read.
func (r *Reader) Path() string {
	return filepath.Join(r.Dir, FileName)
}

// CurrentVersion returns the version declared by the project. The file is
// re-read on every call, so a version changed by the build tool is visible
// immediately.
func (r *Reader) CurrentVersion(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(r.Path())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", r.Path(), err)
	}

	v, err := ParseVersion(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Path(), err)
	}
	return v, nil
}

// ParseVersion extracts the effective project version from pom.xml content.
func ParseVersion(data []byte) (string, error) {
	var p project
	if err := xml.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("parse pom: %w", err)
	}

	v := strings.TrimSpace(p.Version)
	if v == "" && p.Parent != nil {
		v = strings.TrimSpace(p.Parent.Version)
	}
	if v == "" {
		return "", ErrNoVersion
	}

	return resolve(v, p.Properties), nil
}

// resolve substitutes ${name} references defined in <properties>.
// Unknown references are left untouched, which is what Maven itself
// reports for an undefined property.
func resolve(v string, props properties) string {
	if !strings.Contains(v, "${") {
		return v
	}

	values := make(map[string]string, len(props.Entries))
	for _, e := range props.Entries {
		values[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}

	return placeholder.ReplaceAllStringFunc(v, func(ref string) string {
		name := placeholder.FindStringSubmatch(ref)[1]
		if val, ok := values[name]; ok {
			return val
		}
		return ref
	})
}
