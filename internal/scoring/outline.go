package scoring

import "github.com/textaudit/layered-audit/internal/types"

// Paragraph roles reported in the paragraph context.
const (
	RoleHeading      = "heading"
	RoleIntroduction = "introduction"
	RoleBody         = "body"
	RoleConclusion   = "conclusion"
)

// block is one blank-line separated unit of the document.
type block struct {
	Index   int
	Text    string
	Heading bool
	Section int
}

// outline is the segmented structure of a document.
type outline struct {
	Blocks   []block
	Sections []types.SectionContext
}

// buildOutline segments text into blocks and groups them into sections.
// Text before the first heading forms an untitled section.
func buildOutline(text string) outline {
	var o outline
	for i, p := range SplitParagraphs(text) {
		b := block{Index: i, Text: p, Heading: IsHeading(p)}
		if b.Heading {
			title := HeadingTitle(p)
			role, _ := SectionRole(title)
			o.Sections = append(o.Sections, types.SectionContext{
				Index:      len(o.Sections),
				Title:      title,
				Role:       role,
				Paragraphs: []int{},
			})
		} else if len(o.Sections) == 0 {
			o.Sections = append(o.Sections, types.SectionContext{Index: 0, Paragraphs: []int{}})
		}
		current := &o.Sections[len(o.Sections)-1]
		b.Section = current.Index
		if !b.Heading {
			current.Paragraphs = append(current.Paragraphs, i)
		}
		o.Blocks = append(o.Blocks, b)
	}
	return o
}

// body returns the non-heading blocks.
func (o outline) body() []block {
	out := make([]block, 0, len(o.Blocks))
	for _, b := range o.Blocks {
		if !b.Heading {
			out = append(out, b)
		}
	}
	return out
}

// paragraphContext assigns positional roles: the first body paragraph is the
// introduction and the last the conclusion when there are at least three.
func (o outline) paragraphContext() *types.Context {
	body := o.body()
	ctx := &types.Context{Kind: types.ContextParagraph, Paragraphs: make([]types.ParagraphContext, 0, len(o.Blocks))}
	pos := 0
	for _, b := range o.Blocks {
		role := RoleBody
		switch {
		case b.Heading:
			role = RoleHeading
		case len(body) >= 3 && pos == 0:
			role = RoleIntroduction
		case len(body) >= 3 && pos == len(body)-1:
			role = RoleConclusion
		}
		if !b.Heading {
			pos++
		}
		ctx.Paragraphs = append(ctx.Paragraphs, types.ParagraphContext{
			Index:   b.Index,
			Role:    role,
			Text:    b.Text,
			Section: b.Section,
		})
	}
	return ctx
}

func (o outline) sectionContext() *types.Context {
	return &types.Context{Kind: types.ContextSection, Sections: o.Sections}
}
