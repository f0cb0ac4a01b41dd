package pdf

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// pdfcpuPageInfo reads size and rotation of one page from a pdfcpu context.
func pdfcpuPageInfo(ctx *model.Context, pageNumber int) (source.PageInfo, error) {
	if ctx == nil {
		return source.PageInfo{}, fmt.Errorf("context is nil")
	}

	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return source.PageInfo{}, fmt.Errorf("page number %d out of range [1, %d]", pageNumber, ctx.PageCount)
	}

	// Get page dictionary and inherited attributes
	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return source.PageInfo{}, fmt.Errorf("failed to get page dict: %w", err)
	}

	info := defaultPageInfo(pageNumber)

	if attrs != nil {
		// CropBox is the visible region; MediaBox is the fallback
		box := attrs.CropBox
		if box == nil {
			box = attrs.MediaBox
		}
		if box != nil && box.Width() > 0 && box.Height() > 0 {
			info.Width = box.Width()
			info.Height = box.Height()
		}
		info.Rotation = attrs.Rotate
	} else if rot := pageDict["Rotate"]; rot != nil {
		if rotInt, ok := rot.(types.Integer); ok {
			info.Rotation = int(rotInt)
		}
	}

	return info, nil
}

// pdfcpuLayout parses the content stream of one page.
func pdfcpuLayout(ctx *model.Context, pageNumber int) (*Layout, error) {
	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, ErrNoLayout)
	}

	info := defaultPageInfo(pageNumber)
	layout := &Layout{Box: BoundingBox{X1: info.Width, Y1: info.Height}}
	if attrs != nil {
		box := attrs.CropBox
		if box == nil {
			box = attrs.MediaBox
		}
		if box != nil && box.Width() > 0 && box.Height() > 0 {
			layout.Box = BoundingBox{X0: box.LL.X, Y0: box.LL.Y, X1: box.UR.X, Y1: box.UR.Y}
		}
	}

	content, err := ctx.PageContent(pageDict, pageNumber)
	if errors.Is(err, model.ErrNoContent) {
		return layout, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	layout.Objects = NewContentStreamParser().Parse(content)
	return layout, nil
}
