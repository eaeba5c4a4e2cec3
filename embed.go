package leadpress

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/eringen/leadpress/content"
)

// Fixtures contains the seed data shipped with the service:
// case_studies.yaml and brand_voice.yaml.
//
//go:embed fixtures/*.yaml
var Fixtures embed.FS

// SeedReport counts what Seed wrote.
type SeedReport struct {
	CaseStudies int
	BrandVoice  bool
}

// Seed upserts the case studies and, unless one already exists, the brand
// voice profile found in fsys. Missing files are skipped.
func Seed(ctx context.Context, s content.Store, fsys fs.FS) (SeedReport, error) {
	var report SeedReport

	var studies []content.CaseStudy
	found, err := readYAML(fsys, "fixtures/case_studies.yaml", &studies)
	if err != nil {
		return report, err
	}
	if found {
		for _, cs := range studies {
			if cs.ID == "" {
				return report, fmt.Errorf("seed: case study %q has no id", cs.Client)
			}
			if err := s.UpsertCaseStudy(ctx, cs); err != nil {
				return report, fmt.Errorf("seed case study %s: %w", cs.ID, err)
			}
			report.CaseStudies++
		}
	}

	var voice content.BrandVoiceProfile
	found, err = readYAML(fsys, "fixtures/brand_voice.yaml", &voice)
	if err != nil || !found {
		return report, err
	}
	if voice.Source == "" {
		return report, fmt.Errorf("seed: brand voice has no source")
	}
	if _, err := s.GetBrandVoice(ctx, voice.Source); err == nil {
		return report, nil
	} else if !isNotFound(err) {
		return report, fmt.Errorf("seed brand voice: %w", err)
	}
	if err := s.UpsertBrandVoice(ctx, voice); err != nil {
		return report, fmt.Errorf("seed brand voice: %w", err)
	}
	report.BrandVoice = true
	return report, nil
}

func readYAML(fsys fs.FS, name string, v any) (bool, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}
