// SPDX-License-Identifier: MPL-2.0

package pymeta

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// MetadataVersion is the core metadata version this package emits.
const MetadataVersion = "2.3"

type (
	// Person is an author or maintainer entry.
	Person struct {
		Name  string `yaml:"name,omitempty"`
		Email string `yaml:"email,omitempty"`
	}

	// ProjectURL is a labelled project URL ("Source", "Documentation", ...).
	ProjectURL struct {
		Label string `yaml:"label"`
		URL   string `yaml:"url"`
	}

	// Metadata is the core metadata of a distribution. It is rendered as the
	// PKG-INFO file of a source archive and the METADATA file of a wheel.
	Metadata struct {
		Name                   string       `yaml:"name"`
		Version                string       `yaml:"version"`
		Summary                string       `yaml:"summary,omitempty"`
		Description            string       `yaml:"-"`
		DescriptionContentType string       `yaml:"description_content_type,omitempty"`
		Keywords               []string     `yaml:"keywords,omitempty"`
		Homepage               string       `yaml:"homepage,omitempty"`
		Authors                []Person     `yaml:"authors,omitempty"`
		Maintainers            []Person     `yaml:"maintainers,omitempty"`
		License                string       `yaml:"license,omitempty"`
		LicenseFiles           []string     `yaml:"license_files,omitempty"`
		Classifiers            []string     `yaml:"classifiers,omitempty"`
		RequiresDist           []string     `yaml:"requires_dist,omitempty"`
		RequiresPython         string       `yaml:"requires_python,omitempty"`
		ProvidesExtra          []string     `yaml:"provides_extra,omitempty"`
		ProjectURLs            []ProjectURL `yaml:"project_urls,omitempty"`
	}
)

// ParseCargoAuthor splits a Cargo author string "Name <email>" into a Person.
func ParseCargoAuthor(author string) Person {
	author = strings.TrimSpace(author)
	start := strings.LastIndex(author, "<")
	end := strings.LastIndex(author, ">")
	if start < 0 || end < start {
		return Person{Name: author}
	}
	return Person{
		Name:  strings.TrimSpace(author[:start]),
		Email: strings.TrimSpace(author[start+1 : end]),
	}
}

// DistInfo returns the dist-info directory name of this distribution.
func (m *Metadata) DistInfo() string {
	return DistInfoDir(m.Name, m.Version)
}

// Render writes the metadata in the RFC 822 style required by the core
// metadata specification. Field order is fixed so the output is stable.
func (m *Metadata) Render() string {
	var sb strings.Builder
	writeField := func(key, value string) {
		if value == "" {
			return
		}
		// Continuation lines must be indented.
		value = strings.ReplaceAll(value, "\n", "\n       |")
		fmt.Fprintf(&sb, "%s: %s\n", key, value)
	}

	writeField("Metadata-Version", MetadataVersion)
	writeField("Name", m.Name)
	writeField("Version", m.Version)
	for _, dist := range m.RequiresDist {
		writeField("Requires-Dist", dist)
	}
	for _, extra := range m.ProvidesExtra {
		writeField("Provides-Extra", extra)
	}
	for _, classifier := range m.Classifiers {
		writeField("Classifier", classifier)
	}
	writeField("Summary", m.Summary)
	if len(m.Keywords) > 0 {
		writeField("Keywords", strings.Join(m.Keywords, ","))
	}
	writeField("Home-Page", m.Homepage)

	authorNames, authorEmails := splitPeople(m.Authors)
	writeField("Author", authorNames)
	writeField("Author-email", authorEmails)
	maintainerNames, maintainerEmails := splitPeople(m.Maintainers)
	writeField("Maintainer", maintainerNames)
	writeField("Maintainer-email", maintainerEmails)

	writeField("License", m.License)
	for _, file := range m.LicenseFiles {
		writeField("License-File", file)
	}
	writeField("Requires-Python", m.RequiresPython)
	if m.Description != "" {
		writeField("Description-Content-Type", m.DescriptionContentType)
	}
	for _, u := range m.ProjectURLs {
		writeField("Project-URL", u.Label+", "+u.URL)
	}

	if m.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(m.Description)
		if !strings.HasSuffix(m.Description, "\n") {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// WriteTo writes the rendered metadata to w.
func (m *Metadata) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.Render())
	return int64(n), err
}

// splitPeople renders persons with an email into an "Author-email" value and
// persons with only a name into an "Author" value.
func splitPeople(people []Person) (names, emails string) {
	var nameList, emailList []string
	for _, p := range people {
		switch {
		case p.Email != "" && p.Name != "":
			emailList = append(emailList, fmt.Sprintf("%s <%s>", p.Name, p.Email))
		case p.Email != "":
			emailList = append(emailList, p.Email)
		case p.Name != "":
			nameList = append(nameList, p.Name)
		}
	}
	return strings.Join(nameList, ", "), strings.Join(emailList, ", ")
}

// ContentTypeForReadme guesses the description content type from the readme
// filename extension.
func ContentTypeForReadme(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return "text/markdown; charset=UTF-8; variant=GFM"
	case strings.HasSuffix(lower, ".rst"):
		return "text/x-rst; charset=UTF-8"
	default:
		return "text/plain; charset=UTF-8"
	}
}

// SortedExtras returns the extras names in sorted order.
func SortedExtras(optional map[string][]string) []string {
	extras := make([]string, 0, len(optional))
	for name := range optional {
		extras = append(extras, name)
	}
	slices.Sort(extras)
	return extras
}
