// Package seed generates deterministic demo catalogs for the in-memory source
// and for load tests.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopcatalog/internal/domain"
)

// productNamespace keeps generated IDs stable across runs.
var productNamespace = uuid.MustParse("6f1c2d7e-4b8a-4c1e-9d3f-2a5b7c9e0f12")

// category is a top-level bucket with its share of the catalog.
type category struct {
	Name   string
	Weight float64
	Types  []string
}

var categories = []category{
	{"Dresses", 0.20, []string{"Maxi Dress", "Midi Dress", "Knit Dress", "Shirt Dress"}},
	{"Outerwear", 0.15, []string{"Parka", "Trench Coat", "Puffer Vest", "Blazer"}},
	{"Tops", 0.15, []string{"Tunic", "Blouse", "Sweatshirt", "T-Shirt"}},
	{"Bottoms", 0.10, []string{"Palazzo Trousers", "Midi Skirt", "Wide Leg Jeans", "Joggers"}},
	{"Scarves", 0.10, []string{"Shawl", "Silk Scarf", "Turban", "Bonnet"}},
	{"Shoes", 0.10, []string{"Sneaker", "Ankle Boot", "Loafer", "Platform Heel"}},
	{"Bags", 0.10, []string{"Shoulder Bag", "Backpack", "Tote", "Crossbody Bag"}},
	{"Accessories", 0.10, []string{"Necklace", "Hoop Earrings", "Leather Belt", "Bracelet"}},
}

var brands = []string{
	"Northwind", "Alder & Co", "Tuva", "Meridian", "Sable",
	"Lumen", "Halden", "Orla", "Vessa", "Kinfolk",
}

var styles = []string{
	"Plain", "Floral", "Polka Dot", "Striped", "Embroidered",
	"Lace Trim", "Pleated", "Belted", "Buttoned", "Satin",
	"Crepe", "Knitted", "Printed", "Jacquard", "Sequined",
}

var colors = []string{
	"Black", "Navy", "Plum", "Ecru", "Pink",
	"Grey", "Khaki", "Burgundy", "Blue", "Beige",
	"Red", "Green", "Brown", "Cream", "Indigo",
}

var seasons = []string{"spring-summer", "autumn-winter", "all-season"}

var materials = []string{"cotton", "polyester", "viscose", "crepe", "satin", "knit", "leather", "suede", "wool"}

var descriptions = []string{
	"Comfortable %s for everyday wear, made from durable fabric.",
	"An elegant %s that works for both daily wear and special occasions.",
	"Modern cut %s with careful detailing. Easy to combine.",
	"Relaxed fit %s in this season's most popular colours.",
}

// Options controls generation.
type Options struct {
	Count int
	Seed  int64
	// Now anchors CreatedAt; items are spread over the 90 days before it.
	Now time.Time
}

// Generate builds opts.Count items. The same options always yield the same
// catalog.
func Generate(opts Options) []domain.CatalogItem {
	if opts.Count <= 0 {
		return []domain.CatalogItem{}
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	items := make([]domain.CatalogItem, 0, opts.Count)
	idx := 0
	for ci, c := range categories {
		n := int(math.Round(float64(opts.Count) * c.Weight))
		if ci == len(categories)-1 || n > opts.Count-idx {
			n = opts.Count - idx
		}
		for j := 0; j < n; j++ {
			items = append(items, generateItem(rng, c, idx, opts.Now))
			idx++
		}
	}
	return items
}

func generateItem(rng *rand.Rand, c category, idx int, now time.Time) domain.CatalogItem {
	productType := c.Types[rng.Intn(len(c.Types))]
	color := colors[rng.Intn(len(colors))]
	name := fmt.Sprintf("%s %s - %s", styles[rng.Intn(len(styles))], productType, color)

	// 99.00 to 4,999.00 in minor units, rounded to whole currency units.
	price := (9900 + rng.Intn(490000)) / 100 * 100

	reviews := 0
	rating := 0.0
	if rng.Float64() < 0.8 {
		reviews = 1 + rng.Intn(400)
		rating = float64(10+rng.Intn(41)) / 10
	}

	age := time.Duration(rng.Intn(90*24*60)) * time.Minute

	return domain.CatalogItem{
		ID:          uuid.NewSHA1(productNamespace, fmt.Appendf(nil, "product:%d", idx)).String(),
		Name:        name,
		Description: fmt.Sprintf(descriptions[rng.Intn(len(descriptions))], productType),
		Brand:       brands[idx%len(brands)],
		Category:    c.Name,
		Price:       float64(price),
		Rating:      rating,
		ReviewCount: reviews,
		Active:      rng.Float64() < 0.95,
		OnSale:      rng.Float64() < 0.2,
		InStock:     rng.Float64() < 0.85,
		CreatedAt:   now.Add(-age).Truncate(time.Second),
		Tags: []string{
			color,
			seasons[rng.Intn(len(seasons))],
			materials[rng.Intn(len(materials))],
		},
	}
}
