package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatStandard = "standard"
	FormatEnhanced = "enhanced"
)

// Template file names, keyed by call kind and JSON format. The wording
// inside them is opaque to the pipeline; the service only substitutes
// placeholders.
const (
	baseDescriptionStandardFile = "base_description_standard.txt"
	baseDescriptionEnhancedFile = "base_description_enhanced.txt"
	segmentStandardFile         = "segment_standard.txt"
	segmentEnhancedFile         = "segment_enhanced.txt"
	continuationStyleFile       = "continuation_style.txt"
	continuationMinimalFile     = "continuation_minimal.txt"
	voiceProfileFile            = "voice_profile.txt"
)

// TemplateService loads prompt templates once at startup and hands out
// placeholder-substituted copies. Load failure is fatal for the process.
type TemplateService struct {
	dir       string
	templates map[string]string
}

func NewTemplateService(dir string) *TemplateService {
	return &TemplateService{dir: dir, templates: make(map[string]string)}
}

// LoadAllTemplates reads every template file the pipeline can need.
func (t *TemplateService) LoadAllTemplates() error {
	files := []string{
		baseDescriptionStandardFile,
		baseDescriptionEnhancedFile,
		segmentStandardFile,
		segmentEnhancedFile,
		continuationStyleFile,
		continuationMinimalFile,
		voiceProfileFile,
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(t.dir, filename))
		if err != nil {
			return fmt.Errorf("loading template %s: %w", filename, err)
		}
		t.templates[filename] = string(content)
		logrus.Debugf("template loaded: %s", filename)
	}

	logrus.Infof("✓ %d prompt templates loaded from %s", len(files), t.dir)
	return nil
}

func (t *TemplateService) get(filename string) string {
	return t.templates[filename]
}

// BaseDescriptionTemplate returns the base-description template for the
// requested JSON format.
func (t *TemplateService) BaseDescriptionTemplate(format string) string {
	if format == FormatEnhanced {
		return t.get(baseDescriptionEnhancedFile)
	}
	return t.get(baseDescriptionStandardFile)
}

// SegmentTemplate returns the per-segment template for the requested format.
func (t *TemplateService) SegmentTemplate(format string) string {
	if format == FormatEnhanced {
		return t.get(segmentEnhancedFile)
	}
	return t.get(segmentStandardFile)
}

func (t *TemplateService) ContinuationStyleTemplate() string {
	return t.get(continuationStyleFile)
}

func (t *TemplateService) ContinuationMinimalTemplate() string {
	return t.get(continuationMinimalFile)
}

func (t *TemplateService) VoiceProfileTemplate() string {
	return t.get(voiceProfileFile)
}

// substitute replaces [PLACEHOLDER] markers in a template.
func substitute(template string, replacements map[string]string) string {
	out := template
	for marker, value := range replacements {
		out = strings.Replace(out, marker, value, -1)
	}
	return out
}
