package utils

import (
	"github.com/amaumene/gostreamarr/internal/models"
)

const (
	hdrBonus         = 1
	dolbyVisionBonus = 1
)

// QualityBonus returns the small ranking bonus of a release:
// 2160p > 1080p > 720p, plus one point each for HDR and Dolby Vision
func QualityBonus(q models.Quality, hdr, dolbyVision bool) float64 {
	bonus := float64(qualityValue(q))
	if hdr {
		bonus += hdrBonus
	}
	if dolbyVision {
		bonus += dolbyVisionBonus
	}
	return bonus
}

// qualityValue assigns a numeric value to each quality tier for comparison
func qualityValue(q models.Quality) int {
	switch q {
	case models.Quality2160p:
		return 6
	case models.Quality1080p:
		return 4
	case models.Quality720p:
		return 2
	default:
		return 0
	}
}
