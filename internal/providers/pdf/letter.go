// Package pdf renders approved letters into downloadable documents.
package pdf

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

var ErrEmptyDocument = errors.New("empty_document")

const (
	charsPerLine = 95
	lineHeight   = 5.0
)

type LetterDocument struct {
	Title     string
	Date      string
	Reference string
	Content   string
}

// Filename is the slugged title with a .pdf extension.
func (d LetterDocument) Filename() string {
	name := slug.Make(d.Title)
	if name == "" {
		name = "letter"
	}
	return name + ".pdf"
}

type Renderer interface {
	RenderLetter(ctx context.Context, doc LetterDocument) ([]byte, error)
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}

func (r *MarotoRenderer) RenderLetter(ctx context.Context, doc LetterDocument) ([]byte, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, ErrEmptyDocument
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, doc.Title, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(10,
		col.New(6).Add(
			text.New(doc.Date, props.Text{Size: 9, Top: 0}),
		),
		col.New(6).Add(
			text.New(doc.Reference, props.Text{Size: 9, Top: 0, Align: align.Right}),
		),
	)

	for _, paragraph := range paragraphs(doc.Content) {
		m.AddRow(paragraphHeight(paragraph),
			text.NewCol(12, paragraph, props.Text{Size: 10, Align: align.Left}),
		)
	}

	m.AddRow(12,
		text.NewCol(12, "Prepared with Talk-To-My-Lawyer", props.Text{
			Size:  8,
			Style: fontstyle.Italic,
			Align: align.Center,
			Top:   6,
		}),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

// paragraphs splits on blank lines and keeps single line breaks as spaces.
func paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(block, "\n")
		for i := range lines {
			lines[i] = strings.TrimSpace(lines[i])
		}
		joined := strings.TrimSpace(strings.Join(lines, " "))
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

func paragraphHeight(paragraph string) float64 {
	lines := len(paragraph)/charsPerLine + 1
	return float64(lines)*lineHeight + 3
}
