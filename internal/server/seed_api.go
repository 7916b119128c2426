package server

import (
	"log"
	"net/http"

	"github.com/medialoom/medialoom/internal/routing"
)

// seedSampleItems is the fixed demo catalog. Seeding is additive and
// repeatable: each call inserts a fresh copy of the set.
var seedSampleItems = []MediaItem{
	{Title: "The Hitchhiker's Guide to the Galaxy", MediaType: "book", Status: "completed"},
	{Title: "Sapiens: A Brief History of Humankind", MediaType: "book", Status: "actively_exploring"},
	{Title: "Inception", MediaType: "movie", Status: "completed"},
	{Title: "The Matrix", MediaType: "movie", Status: "uncharted"},
	{Title: "How AI Will Change The World", MediaType: "video", Status: "uncharted"},
	{Title: "The History of Computing", MediaType: "podcast", Status: "actively_exploring"},
	{Title: "The Future of Work in the Age of AI", MediaType: "article", Status: "uncharted"},
	{Title: "Understanding Quantum Computing", MediaType: "article", Status: "uncharted"},
}

type seedAPI struct {
	media MediaStore
}

func newSeedAPI(media MediaStore) *seedAPI {
	return &seedAPI{media: media}
}

func (a *seedAPI) handleSeedDemoData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	count := 0
	for _, item := range seedSampleItems {
		if _, err := a.media.Create(r.Context(), item); err != nil {
			log.Printf("seed: create %q failed: %v", item.Title, err)
			routing.WriteError(w, r, routing.RouteClassDevOnly, http.StatusInternalServerError, "seed_failed", "failed to seed demo data")
			return
		}
		count++
	}
	log.Printf("seed: inserted %d demo media items", count)
	routing.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Demo data seeded successfully!",
		"count":   count,
	})
}
