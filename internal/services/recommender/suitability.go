package recommender

import (
	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

const (
	SuitableScore    = 0.5
	alternativeCount = 3
)

// Suitability places crop within the ranked list. A crop outside the list has
// rank N/A and score 0. When the score is at most SuitableScore the top
// alternativeCount names of the list are attached as alternatives.
func Suitability(crop string, top []entities.CropScore) messages.CropSuitability {
	out := messages.CropSuitability{CropName: crop, Rank: messages.NotRanked}
	for i, s := range top {
		if SameCrop(crop, s.Name) {
			out.Rank = messages.Rank(i + 1)
			out.Score = s.Score
			break
		}
	}
	if out.Score <= SuitableScore {
		for _, s := range top {
			if len(out.Alternatives) == alternativeCount {
				break
			}
			out.Alternatives = append(out.Alternatives, s.Name)
		}
	}
	return out
}
