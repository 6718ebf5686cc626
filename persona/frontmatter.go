package persona

import (
	"bufio"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// ParseFunc converts one raw document into a Record. name is a fallback id
// derived from the storage key (e.g. file name without extension); src is
// kept on the record for provenance.
type ParseFunc func(name, src string, data []byte) (Record, error)

// frontMatter is the metadata block preceding the instruction body.
// trigger_description/description and id/name are accepted as aliases.
type frontMatter struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	TriggerDescription string `yaml:"trigger_description"`
	ModelHint          string `yaml:"model_hint"`
}

// ParseFrontMatter splits a document into a "---"-delimited metadata block
// and an opaque instruction body. The body is never interpreted. Field
// presence is enforced later, when a registry snapshot is built.
func ParseFrontMatter(name, src string, data []byte) (Record, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontMatterDelimiter {
		return Record{}, &MalformedRecordError{Source: src, Reason: "missing front-matter block"}
	}

	var meta []string
	terminated := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontMatterDelimiter {
			terminated = true
			break
		}
		meta = append(meta, line)
	}
	if !terminated {
		return Record{}, &MalformedRecordError{Source: src, Reason: "unterminated front-matter block"}
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Record{}, &MalformedRecordError{Source: src, Reason: "read document", Err: err}
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(meta, "\n")), &fm); err != nil {
		return Record{}, &MalformedRecordError{Source: src, Reason: "decode front-matter", Err: err}
	}

	rec := Record{
		ID:                 strings.TrimSpace(fm.ID),
		Name:               strings.TrimSpace(fm.Name),
		TriggerDescription: strings.TrimSpace(fm.TriggerDescription),
		ModelHint:          strings.TrimSpace(fm.ModelHint),
		Instructions:       strings.TrimSpace(strings.Join(body, "\n")),
		Source:             src,
	}
	if rec.ID == "" {
		rec.ID = rec.Name
	}
	if rec.ID == "" {
		rec.ID = name
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if rec.TriggerDescription == "" {
		rec.TriggerDescription = strings.TrimSpace(fm.Description)
	}
	return rec, nil
}
