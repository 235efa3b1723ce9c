package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/WessleyAI/astra/engine/domain"
)

// maxPassage bounds the characters embedded per point.
const maxPassage = 800

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the vector storage used by Index.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	DeleteByReview(ctx context.Context, reviewID string) error
	SearchCar(ctx context.Context, embedding []float32, carID string, topK int) ([]Snippet, error)
}

// Index embeds reviews into passages and looks them up per car.
type Index struct {
	store Store
	embed Embedder
}

// NewIndex wires an embedder to a vector store.
func NewIndex(store Store, embed Embedder) *Index {
	return &Index{store: store, embed: embed}
}

// IndexReview replaces any earlier passages of r with fresh ones.
func (x *Index) IndexReview(ctx context.Context, r domain.Review) error {
	if r.ID == "" || r.CarID == "" {
		return fmt.Errorf("semantic: index review: %w", domain.ErrInvalidReview)
	}
	if err := x.store.DeleteByReview(ctx, r.ID); err != nil {
		return err
	}

	text := strings.TrimSpace(r.Title + "\n\n" + r.Text)
	passages := Passages(text, maxPassage)
	records := make([]Record, 0, len(passages))
	for i, p := range passages {
		vec, err := x.embed.Embed(ctx, p)
		if err != nil {
			return fmt.Errorf("semantic: embed review %s: %w", r.ID, err)
		}
		records = append(records, Record{
			ID:        PointID(r.ID, i),
			Embedding: vec,
			CarID:     r.CarID,
			ReviewID:  r.ID,
			Text:      p,
			Rating:    r.Rating,
		})
	}
	return x.store.Upsert(ctx, records)
}

// Snippets returns up to k passages from carID's reviews closest to query.
func (x *Index) Snippets(ctx context.Context, carID, query string, k int) ([]Snippet, error) {
	vec, err := x.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	return x.store.SearchCar(ctx, vec, carID, k)
}

// PointID derives a stable UUID for passage n of a review.
func PointID(reviewID string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("astra:review:%s:%d", reviewID, n))).String()
}

// Passages splits text on blank lines and packs paragraphs into chunks
// of at most limit bytes. A single oversized paragraph is cut on word
// boundaries.
func Passages(text string, limit int) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > limit {
			flush()
		}
		if len(para) <= limit {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		for _, w := range strings.Fields(para) {
			if cur.Len() > 0 && cur.Len()+len(w)+1 > limit {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(w)
		}
	}
	flush()
	return out
}
