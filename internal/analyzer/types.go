package analyzer

// Verdict is the outcome of classifying one image. Verdicts handed out by the
// analyzer may share their slices with the cache and must be treated as
// read-only.
type Verdict struct {
	IsNSFW     bool     `json:"isNSFW"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Details    *Details `json:"details,omitempty"`
}

// Details records what each heuristic saw
type Details struct {
	SkinTone    SkinToneAnalysis     `json:"skinToneAnalysis"`
	Context     ContextAnalysis      `json:"contextualAnalysis"`
	URL         URLAnalysis          `json:"urlAnalysis"`
	CrossOrigin *CrossOriginAnalysis `json:"crossOriginAnalysis,omitempty"`
}

// SkinToneAnalysis is the pixel-level result. CrossOriginSkipped is set when
// no pixels could be read.
type SkinToneAnalysis struct {
	SkinPercentage     float64 `json:"skinPercentage"`
	SkinPixels         int     `json:"skinPixels"`
	TotalPixels        int     `json:"totalPixels"`
	CrossOriginSkipped bool    `json:"crossOriginSkipped,omitempty"`
}

// ContextAnalysis covers the element's surroundings and text attributes
type ContextAnalysis struct {
	Suspicious bool     `json:"suspiciousContext"`
	Reasons    []string `json:"reasons"`
}

// URLAnalysis covers the image source URL
type URLAnalysis struct {
	Suspicious bool     `json:"suspiciousURL"`
	Reasons    []string `json:"reasons"`
}

// CrossOriginAnalysis covers structural hints used when pixels are unreadable
type CrossOriginAnalysis struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons"`
}

// Failure reasons
const (
	ReasonTooSmall    = "Image too small for analysis"
	ReasonNoImageData = "No image data"
	reasonErrorPrefix = "Analysis error: "
)

func failure(reason string) Verdict {
	return Verdict{IsNSFW: false, Confidence: 0, Reasons: []string{reason}}
}
