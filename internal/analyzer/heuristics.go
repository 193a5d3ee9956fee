package analyzer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/GriffinCanCode/blurguard/internal/dom"
)

// Heuristic weights
const (
	weightSkin            = 0.3
	weightContext         = 0.4
	weightContextNoPixels = 0.5
	weightURL             = 0.3
	weightURLNoPixels     = 0.4
	weightCrossOrigin     = 0.2
	skinRatioThreshold    = 0.4
	largeAreaThreshold    = 300000
	contentAreaThreshold  = 50000
	minContentAspect      = 0.3
	maxContentAspect      = 3.0
)

var (
	parentContextTerms = []string{"adult", "nsfw", "xxx", "porn", "sexy", "nude"}
	altTitleTerms      = []string{"nude", "naked", "sexy", "adult", "xxx", "porn"}
	adultDomainTerms   = []string{
		"pornhub", "xvideos", "redtube", "youporn", "xhamster",
		"xxx", "adult", "porn", "sex", "nude", "nsfw",
	}
	urlPathTerms       = []string{"adult", "xxx", "porn", "nude", "nsfw", "sexy"}
	containerTerms     = []string{"gallery", "photo", "image", "picture", "media", "content"}
	suspiciousDataKeys = []string{"content", "media", "photo", "image"}
)

type rgbRange struct {
	rMin, rMax, gMin, gMax, bMin, bMax uint8
}

var skinRanges = []rgbRange{
	{95, 255, 40, 200, 20, 150}, // light
	{80, 220, 50, 150, 30, 120}, // medium
	{45, 130, 30, 100, 15, 80},  // dark
}

// IsSkinTone reports whether an RGB triple falls in any skin range (bounds inclusive)
func IsSkinTone(r, g, b uint8) bool {
	for _, sr := range skinRanges {
		if r >= sr.rMin && r <= sr.rMax &&
			g >= sr.gMin && g <= sr.gMax &&
			b >= sr.bMin && b <= sr.bMax {
			return true
		}
	}
	return false
}

func analyzeSkinTones(s *pixelSample) SkinToneAnalysis {
	if s.data == nil {
		return SkinToneAnalysis{
			TotalPixels:        s.width * s.height,
			CrossOriginSkipped: true,
		}
	}

	data := s.data.Data
	total := s.data.Pixels()
	skin := 0
	for i := 0; i+3 < len(data); i += 4 {
		if IsSkinTone(data[i], data[i+1], data[i+2]) {
			skin++
		}
	}

	out := SkinToneAnalysis{SkinPixels: skin, TotalPixels: total}
	if total > 0 {
		out.SkinPercentage = float64(skin) / float64(total)
	}
	return out
}

func analyzeContext(el *dom.Element) ContextAnalysis {
	var out ContextAnalysis

	if parent := el.Parent(); parent != nil {
		text := strings.ToLower(parent.ClassName() + " " + parent.ID())
		if containsAny(text, parentContextTerms) {
			out.Suspicious = true
			out.Reasons = append(out.Reasons, "Suspicious parent context")
		}
	}

	text := strings.ToLower(el.Alt() + " " + el.Title())
	if containsAny(text, altTitleTerms) {
		out.Suspicious = true
		out.Reasons = append(out.Reasons, "Suspicious alt/title text")
	}
	return out
}

func analyzeURL(src string) URLAnalysis {
	var out URLAnalysis
	if src == "" {
		return out
	}

	lower := strings.ToLower(src)
	if containsAny(lower, adultDomainTerms) {
		out.Suspicious = true
		out.Reasons = append(out.Reasons, "Adult domain detected")
	}
	if containsAny(lower, urlPathTerms) {
		out.Suspicious = true
		out.Reasons = append(out.Reasons, "Suspicious URL path")
	}
	return out
}

func analyzeCrossOrigin(el *dom.Element) CrossOriginAnalysis {
	var out CrossOriginAnalysis
	flag := func(reason string) {
		out.Suspicious = true
		out.Reasons = append(out.Reasons, reason)
	}

	w, h := el.Width(), el.Height()
	area := float64(w) * float64(h)
	if area > largeAreaThreshold {
		flag("Large image dimensions")
	}
	if h > 0 {
		aspect := float64(w) / float64(h)
		if aspect > minContentAspect && aspect < maxContentAspect && area > contentAreaThreshold {
			flag("Typical content aspect ratio")
		}
	}

	if parent := el.Parent(); parent != nil {
		class := strings.ToLower(parent.ClassName())
		id := strings.ToLower(parent.ID())
		if containsAny(class, containerTerms) || containsAny(id, containerTerms) {
			flag("Image container context")
		}
	}

	for key := range el.Dataset() {
		if slices.Contains(suspiciousDataKeys, strings.ToLower(key)) {
			flag("Suspicious data attributes")
			break
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func skinReason(ratio float64) string {
	return fmt.Sprintf("High skin tone percentage (%.1f%%)", ratio*100)
}
