package domain

// OCRModel is the page-structured OCR output for one document. Coordinates are
// in top-left-origin page space.
type OCRModel struct {
	Metadata OCRMetadata `json:"metadata"`
	Pages    []OCRPage   `json:"pages"`
	Text     string      `json:"text"`
}

type OCRMetadata struct {
	Pages []OCRPageSize `json:"pages"`
}

type OCRPageSize struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Page   int     `json:"page"`
}

type OCRPage struct {
	ID     int       `json:"id"`
	Text   string    `json:"text"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Words  []OCRWord `json:"words"`
}

type OCRWord struct {
	ID          int          `json:"id"`
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"boundingBox"`
}

// BoundingBox is a 4-vertex polygon, clockwise from the top-left corner.
type BoundingBox struct {
	Vertices []Vertex `json:"vertices"`
}

type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EmptyOCRModel returns the empty-but-valid OCR model used when OCR fails.
func EmptyOCRModel() *OCRModel {
	return &OCRModel{
		Metadata: OCRMetadata{Pages: []OCRPageSize{}},
		Pages:    []OCRPage{},
		Text:     "",
	}
}
