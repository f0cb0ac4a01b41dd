package pdf

import (
	"bytes"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ContentStreamParser walks a page content stream and records where the
// page paints: glyph boxes, stroked segments and filled outlines. Fonts are
// not loaded; glyph widths are estimated from the font size.
type ContentStreamParser struct {
	objects Objects

	// Graphics state, including the text state, saved by q and restored by Q
	state graphicsState
	stack []graphicsState

	textMatrix Matrix
	lineMatrix Matrix

	// Current path in user space
	path []subpath
}

type graphicsState struct {
	CTM         Matrix
	StrokeColor color.RGBA
	FillColor   color.RGBA
	LineWidth   float64
	Text        textState
}

type textState struct {
	FontSize  float64
	CharSpace float64
	WordSpace float64
	Scale     float64 // horizontal scaling in percent
	Leading   float64
	Rise      float64
	Mode      int // rendering mode; 3 and 7 paint nothing
}

type subpath struct {
	points []Point
	closed bool
}

// flattenSteps is the number of segments a Bézier curve is split into.
const flattenSteps = 8

var black = color.RGBA{A: 0xff}

var operators = map[string]bool{
	// Text
	"BT": true, "ET": true, "Td": true, "TD": true, "Tm": true, "T*": true,
	"Tj": true, "TJ": true, "'": true, "\"": true,
	"Tc": true, "Tw": true, "Tz": true, "TL": true, "Tf": true, "Tr": true, "Ts": true,
	// Graphics state
	"q": true, "Q": true, "cm": true, "w": true, "J": true, "j": true, "M": true,
	"d": true, "ri": true, "i": true, "gs": true,
	// Path construction and painting
	"m": true, "l": true, "c": true, "v": true, "y": true, "h": true, "re": true,
	"S": true, "s": true, "f": true, "F": true, "f*": true,
	"B": true, "B*": true, "b": true, "b*": true, "n": true, "W": true, "W*": true,
	// Color
	"CS": true, "cs": true, "SC": true, "SCN": true, "sc": true, "scn": true,
	"G": true, "g": true, "RG": true, "rg": true, "K": true, "k": true,
	// XObjects, inline images, marked content, compatibility
	"Do": true, "BI": true, "ID": true, "EI": true,
	"MP": true, "DP": true, "BMC": true, "BDC": true, "EMC": true, "BX": true, "EX": true,
	"d0": true, "d1": true, "sh": true,
}

// NewContentStreamParser creates a parser in the initial graphics state.
func NewContentStreamParser() *ContentStreamParser {
	return &ContentStreamParser{
		state: graphicsState{
			CTM:         IdentityMatrix(),
			StrokeColor: black,
			FillColor:   black,
			LineWidth:   1,
			Text:        textState{FontSize: 12, Scale: 100},
		},
		textMatrix: IdentityMatrix(),
		lineMatrix: IdentityMatrix(),
	}
}

// Parse processes content and returns everything painted so far.
func (p *ContentStreamParser) Parse(content []byte) Objects {
	var operands []string
	for _, token := range tokenize(content) {
		if operators[token] {
			p.processOperator(token, operands)
			operands = operands[:0]
			continue
		}
		operands = append(operands, token)
	}
	return p.objects
}

// tokenize splits a content stream into operand and operator tokens. Strings
// keep their delimiters; inline image data is skipped.
func tokenize(content []byte) []string {
	var tokens []string
	reader := bytes.NewReader(content)

	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		if isWhitespace(b) {
			continue
		}

		switch b {
		case '(':
			tokens = append(tokens, "("+readStringLiteral(reader)+")")
		case '<':
			if next, err := reader.ReadByte(); err == nil && next == '<' {
				tokens = append(tokens, "<<")
				continue
			} else if err == nil {
				reader.UnreadByte()
			}
			tokens = append(tokens, "<"+readHexString(reader)+">")
		case '>':
			if next, err := reader.ReadByte(); err == nil && next == '>' {
				tokens = append(tokens, ">>")
			} else if err == nil {
				reader.UnreadByte()
			}
		case '[', ']', '{', '}':
			tokens = append(tokens, string(b))
		case '/':
			tokens = append(tokens, "/"+readToken(reader))
		case '%':
			skipComment(reader)
		default:
			reader.UnreadByte()
			token := readToken(reader)
			if token == "" {
				// stray delimiter
				reader.ReadByte()
				continue
			}
			tokens = append(tokens, token)
			if token == "ID" {
				skipInlineImage(reader)
				tokens = append(tokens, "EI")
			}
		}
	}
	return tokens
}

func readStringLiteral(reader *bytes.Reader) string {
	var result []byte
	depth := 1
	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		switch b {
		case '\\':
			next, err := reader.ReadByte()
			if err != nil {
				return string(result)
			}
			result = append(result, '\\', next)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return string(result)
			}
		}
		result = append(result, b)
	}
	return string(result)
}

func readHexString(reader *bytes.Reader) string {
	var result []byte
	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		if b == '>' {
			break
		}
		if !isWhitespace(b) {
			result = append(result, b)
		}
	}
	return string(result)
}

func readToken(reader *bytes.Reader) string {
	var result []byte
	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		if isDelimiter(b) || isWhitespace(b) {
			reader.UnreadByte()
			break
		}
		result = append(result, b)
	}
	return string(result)
}

func skipComment(reader *bytes.Reader) {
	for reader.Len() > 0 {
		if b, _ := reader.ReadByte(); b == '\n' || b == '\r' {
			return
		}
	}
}

// skipInlineImage advances past the binary data of an inline image up to
// and including its EI operator.
func skipInlineImage(reader *bytes.Reader) {
	var prev byte = ' '
	for reader.Len() > 0 {
		b, _ := reader.ReadByte()
		if b == 'E' && isWhitespace(prev) {
			if next, err := reader.ReadByte(); err == nil {
				if next == 'I' {
					if after, err := reader.ReadByte(); err != nil || isWhitespace(after) {
						return
					}
					reader.UnreadByte()
				}
				reader.UnreadByte()
			}
		}
		prev = b
	}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

func (p *ContentStreamParser) processOperator(operator string, operands []string) {
	ts := &p.state.Text
	switch operator {
	// Text objects and positioning
	case "BT":
		p.textMatrix = IdentityMatrix()
		p.lineMatrix = IdentityMatrix()
	case "Td":
		if nums, ok := numbers(operands, 2); ok {
			p.moveText(nums[0], nums[1])
		}
	case "TD":
		if nums, ok := numbers(operands, 2); ok {
			ts.Leading = -nums[1]
			p.moveText(nums[0], nums[1])
		}
	case "Tm":
		if nums, ok := numbers(operands, 6); ok {
			p.textMatrix = Matrix{A: nums[0], B: nums[1], C: nums[2], D: nums[3], E: nums[4], F: nums[5]}
			p.lineMatrix = p.textMatrix
		}
	case "T*":
		p.moveText(0, -ts.Leading)

	// Text showing
	case "Tj":
		if len(operands) > 0 {
			p.showString(operands[len(operands)-1])
		}
	case "'":
		p.moveText(0, -ts.Leading)
		if len(operands) > 0 {
			p.showString(operands[len(operands)-1])
		}
	case "\"":
		if len(operands) >= 3 {
			if nums, ok := numbers(operands[:2], 2); ok {
				ts.WordSpace, ts.CharSpace = nums[0], nums[1]
			}
			p.moveText(0, -ts.Leading)
			p.showString(operands[2])
		}
	case "TJ":
		p.showArray(operands)

	// Text state
	case "Tc":
		setNumber(&ts.CharSpace, operands)
	case "Tw":
		setNumber(&ts.WordSpace, operands)
	case "Tz":
		setNumber(&ts.Scale, operands)
	case "TL":
		setNumber(&ts.Leading, operands)
	case "Ts":
		setNumber(&ts.Rise, operands)
	case "Tr":
		var mode float64
		setNumber(&mode, operands)
		ts.Mode = int(mode)
	case "Tf":
		if len(operands) >= 2 {
			ts.FontSize = parseFloat(operands[len(operands)-1])
		}

	// Graphics state
	case "q":
		p.stack = append(p.stack, p.state)
	case "Q":
		if n := len(p.stack); n > 0 {
			p.state = p.stack[n-1]
			p.stack = p.stack[:n-1]
		}
	case "cm":
		if nums, ok := numbers(operands, 6); ok {
			m := Matrix{A: nums[0], B: nums[1], C: nums[2], D: nums[3], E: nums[4], F: nums[5]}
			p.state.CTM = m.Multiply(p.state.CTM)
		}
	case "w":
		setNumber(&p.state.LineWidth, operands)

	// Path construction
	case "m":
		if nums, ok := numbers(operands, 2); ok {
			p.path = append(p.path, subpath{points: []Point{p.toPage(nums[0], nums[1])}})
		}
	case "l":
		if nums, ok := numbers(operands, 2); ok {
			p.lineTo(p.toPage(nums[0], nums[1]))
		}
	case "c":
		if nums, ok := numbers(operands, 6); ok {
			p.curveTo(p.toPage(nums[0], nums[1]), p.toPage(nums[2], nums[3]), p.toPage(nums[4], nums[5]))
		}
	case "v":
		if nums, ok := numbers(operands, 4); ok {
			p.curveTo(p.currentPoint(), p.toPage(nums[0], nums[1]), p.toPage(nums[2], nums[3]))
		}
	case "y":
		if nums, ok := numbers(operands, 4); ok {
			end := p.toPage(nums[2], nums[3])
			p.curveTo(p.toPage(nums[0], nums[1]), end, end)
		}
	case "h":
		p.closePath()
	case "re":
		if nums, ok := numbers(operands, 4); ok {
			x, y, w, h := nums[0], nums[1], nums[2], nums[3]
			p.path = append(p.path, subpath{
				points: []Point{p.toPage(x, y), p.toPage(x+w, y), p.toPage(x+w, y+h), p.toPage(x, y+h)},
				closed: true,
			})
		}

	// Path painting
	case "S":
		p.stroke()
		p.path = nil
	case "s":
		p.closePath()
		p.stroke()
		p.path = nil
	case "f", "F", "f*":
		p.fill()
		p.path = nil
	case "B", "B*":
		p.fill()
		p.stroke()
		p.path = nil
	case "b", "b*":
		p.closePath()
		p.fill()
		p.stroke()
		p.path = nil
	case "n":
		p.path = nil

	// Color
	case "G", "SC", "SCN", "RG", "K":
		if c, ok := parseColor(operands); ok {
			p.state.StrokeColor = c
		}
	case "g", "sc", "scn", "rg", "k":
		if c, ok := parseColor(operands); ok {
			p.state.FillColor = c
		}

	// Images and forms are placed on the unit square
	case "Do":
		p.objects.Images = append(p.objects.Images, p.bounds(
			p.toPage(0, 0), p.toPage(1, 0), p.toPage(1, 1), p.toPage(0, 1)))
	}
}

func (p *ContentStreamParser) toPage(x, y float64) Point {
	return p.state.CTM.Apply(x, y)
}

func (p *ContentStreamParser) moveText(tx, ty float64) {
	p.lineMatrix = TranslationMatrix(tx, ty).Multiply(p.lineMatrix)
	p.textMatrix = p.lineMatrix
}

func (p *ContentStreamParser) currentPoint() Point {
	if n := len(p.path); n > 0 {
		sp := p.path[n-1]
		if sp.closed {
			return sp.points[0]
		}
		return sp.points[len(sp.points)-1]
	}
	return p.toPage(0, 0)
}

func (p *ContentStreamParser) lineTo(pt Point) {
	if len(p.path) == 0 || p.path[len(p.path)-1].closed {
		p.path = append(p.path, subpath{points: []Point{p.currentPoint()}})
	}
	last := &p.path[len(p.path)-1]
	last.points = append(last.points, pt)
}

func (p *ContentStreamParser) curveTo(c1, c2, end Point) {
	start := p.currentPoint()
	for i := 1; i <= flattenSteps; i++ {
		t := float64(i) / flattenSteps
		u := 1 - t
		p.lineTo(Point{
			X: u*u*u*start.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*end.X,
			Y: u*u*u*start.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*end.Y,
		})
	}
}

func (p *ContentStreamParser) closePath() {
	if n := len(p.path); n > 0 {
		p.path[n-1].closed = true
	}
}

func (p *ContentStreamParser) stroke() {
	width := p.state.LineWidth * math.Sqrt(math.Abs(p.state.CTM.A*p.state.CTM.D-p.state.CTM.B*p.state.CTM.C))
	for _, sp := range p.path {
		pts := sp.points
		if sp.closed && len(pts) > 2 {
			pts = append(pts[:len(pts):len(pts)], pts[0])
		}
		for i := 1; i < len(pts); i++ {
			p.objects.Lines = append(p.objects.Lines, LineObject{
				X0: pts[i-1].X, Y0: pts[i-1].Y,
				X1: pts[i].X, Y1: pts[i].Y,
				Width:       width,
				StrokeColor: p.state.StrokeColor,
			})
		}
	}
}

func (p *ContentStreamParser) fill() {
	for _, sp := range p.path {
		if len(sp.points) < 3 {
			continue
		}
		if isAxisAligned(sp.points) {
			p.objects.Rects = append(p.objects.Rects, RectObject{
				BoundingBox: p.bounds(sp.points...),
				FillColor:   p.state.FillColor,
			})
			continue
		}
		p.objects.Shapes = append(p.objects.Shapes, ShapeObject{
			Points:    append([]Point(nil), sp.points...),
			FillColor: p.state.FillColor,
		})
	}
}

// isAxisAligned reports whether four points form a rectangle with sides
// parallel to the page edges.
func isAxisAligned(pts []Point) bool {
	if len(pts) == 5 && pts[4] == pts[0] {
		pts = pts[:4]
	}
	if len(pts) != 4 {
		return false
	}
	for i := range pts {
		a, b := pts[i], pts[(i+1)%4]
		if a.X != b.X && a.Y != b.Y {
			return false
		}
	}
	return true
}

func (p *ContentStreamParser) bounds(pts ...Point) BoundingBox {
	box := BoundingBox{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, pt := range pts[1:] {
		box.X0 = min(box.X0, pt.X)
		box.Y0 = min(box.Y0, pt.Y)
		box.X1 = max(box.X1, pt.X)
		box.Y1 = max(box.Y1, pt.Y)
	}
	return box
}

// showArray handles TJ: strings interleaved with position adjustments in
// thousandths of a text space unit.
func (p *ContentStreamParser) showArray(operands []string) {
	ts := p.state.Text
	for _, op := range operands {
		switch {
		case op == "[" || op == "]":
		case strings.HasPrefix(op, "(") || strings.HasPrefix(op, "<"):
			p.showString(op)
		default:
			tx := -parseFloat(op) / 1000 * ts.FontSize * ts.Scale / 100
			p.textMatrix = TranslationMatrix(tx, 0).Multiply(p.textMatrix)
		}
	}
}

func (p *ContentStreamParser) showString(operand string) {
	ts := p.state.Text
	trm := p.textMatrix.Multiply(p.state.CTM)
	for _, code := range stringBytes(operand) {
		advance := charWidth(code) * ts.FontSize
		box := p.bounds(
			trm.Apply(0, ts.Rise),
			trm.Apply(advance*ts.Scale/100, ts.Rise),
			trm.Apply(0, ts.Rise+ts.FontSize),
			trm.Apply(advance*ts.Scale/100, ts.Rise+ts.FontSize),
		)
		if code != ' ' && ts.Mode != 3 && ts.Mode != 7 {
			p.objects.Chars = append(p.objects.Chars, CharObject{
				BoundingBox: box,
				FontSize:    ts.FontSize,
				Color:       p.state.FillColor,
			})
		}

		tx := advance + ts.CharSpace
		if code == ' ' {
			tx += ts.WordSpace
		}
		p.textMatrix = TranslationMatrix(tx*ts.Scale/100, 0).Multiply(p.textMatrix)
		trm = p.textMatrix.Multiply(p.state.CTM)
	}
}

// charWidth estimates the advance of a glyph as a fraction of the font size.
func charWidth(code byte) float64 {
	switch code {
	case ' ':
		return 0.25
	case 'i', 'l', 'I', '!', '.', ',', ';', ':', '\'', '"':
		return 0.3
	case 'm', 'M', 'W', 'w':
		return 0.8
	default:
		return 0.5
	}
}

// stringBytes returns the character codes of a literal or hex string token.
func stringBytes(token string) []byte {
	switch {
	case strings.HasPrefix(token, "(") && strings.HasSuffix(token, ")"):
		return unescape(token[1 : len(token)-1])
	case strings.HasPrefix(token, "<") && strings.HasSuffix(token, ">"):
		return decodeHex(token[1 : len(token)-1])
	}
	return nil
}

func unescape(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch c := s[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '\n', '\r':
			// line continuation
		default:
			if c < '0' || c > '7' {
				out = append(out, c)
				continue
			}
			end := i + 1
			for end < len(s) && end < i+3 && s[end] >= '0' && s[end] <= '7' {
				end++
			}
			v, _ := strconv.ParseUint(s[i:end], 8, 16)
			out = append(out, byte(v))
			i = end - 1
		}
	}
	return out
}

func decodeHex(s string) []byte {
	if len(s)%2 == 1 {
		s += "0"
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
			out = append(out, byte(v))
		}
	}
	return out
}

// parseColor reads gray, RGB or CMYK components; pattern and color space
// names among the operands are ignored.
func parseColor(operands []string) (color.RGBA, bool) {
	var comps []float64
	for _, op := range operands {
		if v, err := strconv.ParseFloat(op, 64); err == nil {
			comps = append(comps, min(max(v, 0), 1))
		}
	}
	to8 := func(v float64) uint8 { return uint8(math.Round(v * 255)) }
	switch len(comps) {
	case 1:
		g := to8(comps[0])
		return color.RGBA{R: g, G: g, B: g, A: 0xff}, true
	case 3:
		return color.RGBA{R: to8(comps[0]), G: to8(comps[1]), B: to8(comps[2]), A: 0xff}, true
	case 4:
		c, m, y, k := comps[0], comps[1], comps[2], comps[3]
		return color.RGBA{R: to8((1 - c) * (1 - k)), G: to8((1 - m) * (1 - k)), B: to8((1 - y) * (1 - k)), A: 0xff}, true
	}
	return color.RGBA{}, false
}

// numbers parses the last n operands; ok is false if any is not a number.
func numbers(operands []string, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	nums := make([]float64, n)
	for i, op := range operands[len(operands)-n:] {
		v, err := strconv.ParseFloat(op, 64)
		if err != nil {
			return nil, false
		}
		nums[i] = v
	}
	return nums, true
}

func setNumber(dst *float64, operands []string) {
	if nums, ok := numbers(operands, 1); ok {
		*dst = nums[0]
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
