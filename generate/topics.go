package generate

import "strings"

// Topic is a blog subject with its category.
type Topic struct {
	Title    string `json:"topic"`
	Category string `json:"category"`
}

// DefaultCategory is used when neither caller nor topic names one.
const DefaultCategory = "AI Strategy"

// DefaultTopics is the rotation used when the caller supplies no topic.
var DefaultTopics = []Topic{
	{"How to run an AI readiness assessment in 30 days", "AI Strategy"},
	{"Choosing between fine-tuning and retrieval for your first LLM project", "Machine Learning"},
	{"Automating invoice processing with document AI", "Automation"},
	{"Measuring ROI on generative AI pilots", "AI Strategy"},
	{"Building a data foundation before you buy AI tools", "Data Engineering"},
	{"Guardrails for customer-facing chatbots", "Generative AI"},
	{"Predictive maintenance for mid-sized manufacturers", "Machine Learning"},
	{"Change management when AI reshapes a team's workflow", "AI Strategy"},
	{"Evaluating LLM vendors: a practical scorecard", "Generative AI"},
	{"From spreadsheet to pipeline: modernising reporting", "Data Engineering"},
	{"Where robotic process automation still beats AI agents", "Automation"},
	{"Writing an AI usage policy your staff will actually read", "AI Governance"},
}

// StockImages are fallback hero images per category.
var StockImages = map[string]string{
	"ai strategy":      "https://images.unsplash.com/photo-1677442136019-21780ecad995?w=1200&q=80",
	"machine learning": "https://images.unsplash.com/photo-1555949963-aa79dcee981c?w=1200&q=80",
	"automation":       "https://images.unsplash.com/photo-1518432031352-d6fc5c10da5a?w=1200&q=80",
	"data engineering": "https://images.unsplash.com/photo-1551288049-bebda4e38f71?w=1200&q=80",
	"generative ai":    "https://images.unsplash.com/photo-1686191128892-3b37add4c844?w=1200&q=80",
	"ai governance":    "https://images.unsplash.com/photo-1450101499163-c8848c66ca85?w=1200&q=80",
}

const defaultStockImage = "https://images.unsplash.com/photo-1485827404703-89b55fcc595e?w=1200&q=80"

// StockImage returns the fallback image for category.
func StockImage(category string) string {
	if u, ok := StockImages[strings.ToLower(strings.TrimSpace(category))]; ok {
		return u
	}
	return defaultStockImage
}

// palette holds presentation hints per category: text colour, background
// and border classes.
type palette struct{ color, bg, border string }

var palettes = map[string]palette{
	"ai strategy":      {"text-blue-600", "bg-blue-50", "border-blue-200"},
	"machine learning": {"text-purple-600", "bg-purple-50", "border-purple-200"},
	"automation":       {"text-emerald-600", "bg-emerald-50", "border-emerald-200"},
	"data engineering": {"text-amber-600", "bg-amber-50", "border-amber-200"},
	"generative ai":    {"text-pink-600", "bg-pink-50", "border-pink-200"},
	"ai governance":    {"text-slate-600", "bg-slate-50", "border-slate-200"},
}

func paletteFor(category string) palette {
	if p, ok := palettes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return p
	}
	return palette{"text-indigo-600", "bg-indigo-50", "border-indigo-200"}
}
