package chart

// UnknownSign is the display name for sign index 0 or out-of-range values.
const UnknownSign = "Unknown"

var signNames = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// SignName returns the English name of a 1-based zodiac sign.
func SignName(sign int) string {
	if sign < 1 || sign > 12 {
		return UnknownSign
	}
	return signNames[sign-1]
}

// Planet is one row of the upstream planetary-position table.
type Planet struct {
	Name       string  `json:"name"`
	FullDegree float64 `json:"fullDegree"`
	NormDegree float64 `json:"normDegree"`
	Sign       int     `json:"current_sign"`
	House      int     `json:"house_number"`
	IsRetro    bool    `json:"isRetro"`
}
