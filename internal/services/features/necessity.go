package features

import "strings"

// DefaultNecessityScore is used for categories outside the necessity table.
const DefaultNecessityScore = 50

// necessity scores macro categories from 0 (discretionary) to 100 (essential).
var necessity = map[string]float64{
	"🏠 Vivienda y hogar":                     90,
	"🧾 Alimentos y bebidas":                  100,
	"🏥 Salud y bienestar":                    95,
	"📚 Educación y formación":                85,
	"🚗 Transporte y movilidad":               65,
	"👶 Familia y dependientes":               85,
	"🧹 Servicios personales y profesionales": 65,
	"🏦 Finanzas y obligaciones":              70,
	"🧑‍💻 Tecnología y comunicaciones":        55,
	"👕 Ropa y accesorios":                    50,
	"🏗️ Construcción y remodelación":         35,
	"🎮 Entretenimiento y ocio":               40,
	"✈️ Viajes y turismo":                    20,
	"🎁 Regalos y celebraciones":              25,
	"🧾 Otros gastos controlados":             45,
}

var necessityByName = func() map[string]float64 {
	out := make(map[string]float64, len(necessity))
	for k, v := range necessity {
		out[stripIcon(k)] = v
	}
	return out
}()

// NecessityScore returns the necessity of a macro category. Labels match with or without their icon prefix.
func NecessityScore(category string) float64 {
	if v, ok := necessity[category]; ok {
		return v
	}
	if v, ok := necessityByName[stripIcon(category)]; ok {
		return v
	}
	return DefaultNecessityScore
}

func stripIcon(label string) string {
	label = strings.TrimSpace(label)
	if i := strings.IndexByte(label, ' '); i > 0 && !isLetter(label[0]) {
		label = label[i+1:]
	}
	return strings.ToLower(strings.TrimSpace(label))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
