package svgflat

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jphsd/svgflat/svg"
	"github.com/jphsd/svgflat/text"
	"github.com/jphsd/svgflat/xml"
)

// vectorizeTexts replaces the <text> elements that cannot stay text, those inside clip paths and
// masks or all of them when asked, with groups of glyph outlines. A text that fails to convert is
// left in place.
func vectorizeTexts(ctx context.Context, doc *svg.Document, v text.Vectorizer, all bool, limit int, log *slog.Logger) error {
	var texts []*xml.Element
	doc.Root.Walk(func(e *xml.Element) bool {
		if svg.KindOf(e) != svg.KindText {
			return true
		}
		if all || e.Ancestor("clipPath") != nil || e.Ancestor("mask") != nil {
			texts = append(texts, e)
		}
		return false
	})
	if len(texts) == 0 {
		return nil
	}

	repl := make([]*xml.Element, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range texts {
		g.Go(func() error {
			r, err := v.Vectorize(gctx, t, doc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("text left unconverted", "text", t.Text(), "error", err)
				return nil
			}
			repl[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, t := range texts {
		if repl[i] != nil && t.Parent != nil {
			t.Parent.Replace(t, repl[i])
		}
	}
	doc.Reindex()
	return nil
}
