package services

import (
	"math/rand"

	"github.com/toftmakemore/makemoreV2/models"
)

// Post and per-vehicle subject pools, one randomized pick per post.
var subjectPool = map[string][]string{
	models.CollectionNewVehicles:      {"Nyheder", "Nye biler på lager"},
	models.CollectionNewPriceVehicles: {"Nye priser", "Prisændringer"},
	models.CollectionDaysForSale:      {"Lagerbiler"},
	models.CollectionSoldVehicles:     {"Solgte biler", "Netop solgte"},
	models.CollectionDealerCars:       {"Se vores udvalg", "Biler på lager"},
}

var childSubjectPool = map[string][]string{
	models.CollectionNewVehicles:      {"Nyhed", "Ny bil på lager"},
	models.CollectionNewPriceVehicles: {"Ny pris", "Prisændring"},
	models.CollectionDaysForSale:      {"Lagerbil"},
	models.CollectionSoldVehicles:     {"Solgt", "Netop solgt"},
	models.CollectionDealerCars:       {"Se bilen"},
}

func randomSubject(collection string, rng *rand.Rand) string {
	return pick(subjectPool[collection], rng)
}

func randomChildSubject(collection string, rng *rand.Rand) string {
	if s := pick(childSubjectPool[collection], rng); s != "" {
		return s
	}
	return "Se bilen"
}

func pick(pool []string, rng *rand.Rand) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rng.Intn(len(pool))]
}

// PostingType derives the publisher routing key from the channel set.
func PostingType(channels []string) string {
	var fb, ig bool
	for _, ch := range channels {
		switch ch {
		case models.ChannelFacebook:
			fb = true
		case models.ChannelInstagram:
			ig = true
		}
	}
	switch {
	case fb && ig:
		return "facebookLinkImage,InstagramPost"
	case fb:
		return "facebookLinkImage"
	case ig:
		return "InstagramPost"
	default:
		return ""
	}
}
