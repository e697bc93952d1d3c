package registry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oncotrack-ai/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// SeedProfile controls how much demo data the seeder generates and which
// vocabularies it draws from.
type SeedProfile struct {
	Projects              int `yaml:"projects"`
	SubjectsPerProject    int `yaml:"subjects_per_project"`
	LesionsPerSubject     int `yaml:"lesions_per_subject"`
	MeasurementsPerLesion int `yaml:"measurements_per_lesion"`

	Sexes        []string `yaml:"sexes"`
	CancerTypes  []string `yaml:"cancer_types"`
	Stages       []string `yaml:"stages"`
	Sites        []string `yaml:"sites"`
	Lateralities []string `yaml:"lateralities"`
	Modalities   []string `yaml:"modalities"`
	Timepoints   []string `yaml:"timepoints"`
	Reviewers    []string `yaml:"reviewers"`
}

func DefaultSeedProfile() SeedProfile {
	return SeedProfile{
		Projects:              2,
		SubjectsPerProject:    10,
		LesionsPerSubject:     3,
		MeasurementsPerLesion: 4,
		Sexes:                 []string{"M", "F"},
		CancerTypes:           []string{"NSCLC", "SCLC", "Breast", "CRC", "Melanoma", "Prostate"},
		Stages:                []string{"I", "II", "III", "IV"},
		Sites:                 []string{"Lung", "Liver", "Brain", "Bone", "Lymph node", "Adrenal"},
		Lateralities:          []string{"Left", "Right", "Midline"},
		Modalities:            []string{"CT", "MRI", "PET/CT"},
		Timepoints:            []string{"baseline", "week_6", "week_12", "week_18", "week_24"},
		Reviewers:             []string{"r1", "r2", "r3"},
	}
}

// LoadSeedProfile reads a YAML profile; an empty path yields the defaults.
// Counts left at zero in the file fall back to the default values.
func LoadSeedProfile(path string) (SeedProfile, error) {
	profile := DefaultSeedProfile()
	if path == "" {
		return profile, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return profile, err
	}
	if err := yaml.Unmarshal(content, &profile); err != nil {
		return SeedProfile{}, fmt.Errorf("invalid seed profile: %w", err)
	}
	defaults := DefaultSeedProfile()
	if profile.Projects <= 0 {
		profile.Projects = defaults.Projects
	}
	if profile.SubjectsPerProject <= 0 {
		profile.SubjectsPerProject = defaults.SubjectsPerProject
	}
	if profile.LesionsPerSubject <= 0 {
		profile.LesionsPerSubject = defaults.LesionsPerSubject
	}
	if profile.MeasurementsPerLesion <= 0 {
		profile.MeasurementsPerLesion = defaults.MeasurementsPerLesion
	}
	return profile, nil
}

// Seed populates the registry with generated demo data. Diameters drift
// geometrically per timepoint so change analytics have something to show.
func (r *Repository) Seed(ctx context.Context, profile SeedProfile, clearFirst bool) error {
	if clearFirst {
		if err := r.DeleteAllProjects(ctx); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	for p := 1; p <= profile.Projects; p++ {
		description := "Seeded test data for development"
		project, err := r.CreateProject(ctx, models.CreateProjectRequest{
			Name:        fmt.Sprintf("Demo Project %d", p),
			Description: &description,
		})
		if err != nil {
			return err
		}

		for s := 1; s <= profile.SubjectsPerProject; s++ {
			age := 25 + rng.Intn(61)
			subject, err := r.CreateSubject(ctx, project.ID, models.CreateSubjectRequest{
				SubjectCode:    fmt.Sprintf("S%03d", s),
				Sex:            pick(rng, profile.Sexes),
				AgeAtDiagnosis: &age,
				CancerType:     pick(rng, profile.CancerTypes),
				Stage:          pick(rng, profile.Stages),
			})
			if err != nil {
				return err
			}

			for l := 1; l <= profile.LesionsPerSubject; l++ {
				var laterality *string
				if rng.Float64() < 0.75 {
					laterality = pick(rng, profile.Lateralities)
				}
				lesion, err := r.CreateLesion(ctx, subject.ID, models.CreateLesionRequest{
					LesionLabel:  fmt.Sprintf("T%d", l),
					AnatomicSite: pick(rng, profile.Sites),
					Laterality:   laterality,
					Modality:     pick(rng, profile.Modalities),
				})
				if err != nil {
					return err
				}

				count := profile.MeasurementsPerLesion
				if count > len(profile.Timepoints) {
					count = len(profile.Timepoints)
				}

				baseLong := 8.0 + rng.Float64()*52.0
				baseShort := baseLong * (0.4 + rng.Float64()*0.5)
				drift := -0.15 + rng.Float64()*0.35

				for i := 0; i < count; i++ {
					factor := 1.0
					for step := 0; step < i; step++ {
						factor *= 1.0 + drift
					}
					longMM := round2(baseLong * factor)
					shortMM := round2(baseShort * factor)
					if longMM < 0 {
						longMM = 0
					}
					if shortMM < 0 {
						shortMM = 0
					}

					measuredAt := now.AddDate(0, 0, -(count-1-i)*42)
					confidence := round2(0.55 + rng.Float64()*0.44)

					req := models.CreateMeasurementRequest{
						Timepoint:         profile.Timepoints[i],
						MeasuredAt:        &measuredAt,
						LongestDiameterMM: longMM,
						ShortAxisMM:       shortMM,
						Confidence:        &confidence,
					}
					if rng.Float64() < 0.4 {
						volume := round2(longMM * shortMM * (50 + rng.Float64()*70))
						req.VolumeMM3 = &volume
					}
					if rng.Float64() < 0.3 {
						meanHU := round2(-50 + rng.Float64()*170)
						req.MeanHU = &meanHU
					}
					if rng.Float64() < 0.3 {
						suv := round2(0.5 + rng.Float64()*17.5)
						req.SUVMax = &suv
					}
					if rng.Float64() < 0.8 {
						req.Reviewer = pick(rng, profile.Reviewers)
					}

					if _, err := r.CreateMeasurement(ctx, lesion.ID, req); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

func pick(rng *rand.Rand, values []string) *string {
	if len(values) == 0 {
		return nil
	}
	value := values[rng.Intn(len(values))]
	return &value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
