package identifier

import "github.com/example/insect-id/internal/insect"

// PayloadHash is an order-sensitive polynomial hash (h = h*31 + b, wrapping
// at 32 bits) over the raw payload bytes.
func PayloadHash(payload []byte) uint32 {
	var h uint32
	for _, b := range payload {
		h = h*31 + uint32(b)
	}
	return h
}

// FallbackIndex maps a payload to a catalog slot of size n.
func FallbackIndex(payload []byte, n int) int {
	if n <= 0 {
		return 0
	}
	return int(PayloadHash(payload) % uint32(n))
}

// FallbackCatalog returns a fresh copy of the canned records used when the
// model is unavailable. The order is part of the hash contract.
func FallbackCatalog() []insect.IdentificationRecord {
	return []insect.IdentificationRecord{
		{
			CommonName:      "Monarch Butterfly",
			ScientificName:  "Danaus plexippus",
			Order:           "Lepidoptera",
			Habitat:         "Fields, meadows, gardens, parks",
			Diet:            "Nectar (adults), milkweed (larvae)",
			LifeCycle:       "Complete metamorphosis (egg, larva, pupa, adult)",
			GeographicRange: "North and South America, Australia, New Zealand",
			WingspanSize:    "8.9-10.2 cm wingspan",
			EcologicalRole:  "Pollinator, indicator species for ecosystem health",
			Description:     "The Monarch butterfly is one of the most recognizable butterflies in North America, famous for a migration spanning thousands of miles. Its orange and black wings warn predators of the toxins it stores from milkweed.",
		},
		{
			CommonName:      "Honeybee",
			ScientificName:  "Apis mellifera",
			Order:           "Hymenoptera",
			Habitat:         "Gardens, meadows, orchards, agricultural areas",
			Diet:            "Nectar and pollen",
			LifeCycle:       "Complete metamorphosis (egg, larva, pupa, adult)",
			GeographicRange: "Worldwide (originally Europe, Africa, Middle East)",
			WingspanSize:    "2.5-3.2 cm body length",
			EcologicalRole:  "Primary pollinator, honey production, ecosystem keystone species",
			Description:     "Honeybees pollinate a large share of the crops people eat. They live in organized colonies of tens of thousands of workers and communicate food sources through the waggle dance.",
		},
		{
			CommonName:      "Ladybug",
			ScientificName:  "Coccinella septempunctata",
			Order:           "Coleoptera",
			Habitat:         "Gardens, agricultural fields, forests, meadows",
			Diet:            "Aphids, scale insects, mites (carnivorous)",
			LifeCycle:       "Complete metamorphosis (egg, larva, pupa, adult)",
			GeographicRange: "Europe, North America, Asia",
			WingspanSize:    "5-8 mm body length",
			EcologicalRole:  "Natural pest control, predator of agricultural pests",
			Description:     "The seven-spot ladybird is a familiar garden beetle. A single adult can eat thousands of aphids in its lifetime, which makes it a valued ally of farmers and gardeners.",
		},
		{
			CommonName:      "Common Green Darner",
			ScientificName:  "Anax junius",
			Order:           "Odonata",
			Habitat:         "Ponds, lakes, marshes, slow streams",
			Diet:            "Flying insects such as mosquitoes, flies and moths",
			LifeCycle:       "Incomplete metamorphosis (egg, aquatic nymph, adult)",
			GeographicRange: "North and Central America, Caribbean",
			WingspanSize:    "10-11 cm wingspan",
			EcologicalRole:  "Aerial predator, prey for birds and fish",
			Description:     "The Common Green Darner is one of the largest and fastest dragonflies in North America. Some populations migrate south each autumn, much like monarch butterflies.",
		},
		{
			CommonName:      "Chinese Mantis",
			ScientificName:  "Tenodera sinensis",
			Order:           "Mantodea",
			Habitat:         "Meadows, shrubland, gardens",
			Diet:            "Insects, spiders, occasionally small vertebrates",
			LifeCycle:       "Incomplete metamorphosis (ootheca, nymph, adult)",
			GeographicRange: "East Asia, introduced to North America",
			WingspanSize:    "7.5-10 cm body length",
			EcologicalRole:  "Generalist predator",
			Description:     "The Chinese Mantis is an ambush predator that waits motionless on vegetation before seizing prey with its raptorial forelegs. Its foam egg cases survive winter attached to stems.",
		},
	}
}
