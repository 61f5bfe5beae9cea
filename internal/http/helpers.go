package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/services"
)

var templateFuncs = template.FuncMap{
	"money":    func(m core.Money) string { return m.String() },
	"absMoney": func(m core.Money) string { return m.Abs().String() },
	"signed":   func(m core.Money) string { return m.Signed() },
	"date":     formatDate,
	"dueLabel": services.DueLabel,
	"percent":  func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
	"width": func(p float64) template.CSS {
		return template.CSS(fmt.Sprintf("width: %.1f%%", clampPercent(p)))
	},
	"fill": func(theme string) template.CSS {
		return template.CSS("background-color: " + safeColor(theme))
	},
	"color":    safeColor,
	"potTitle": func(name, theme string) potTitle { return potTitle{Name: name, Theme: theme} },
}

// potTitle feeds the pot_title partial, which budgets reuse for their header.
type potTitle struct {
	Name  string
	Theme string
}

// formatDate renders dates as "19 Aug 2024".
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// safeColor accepts "#rgb" or "#rrggbb" and falls back to a neutral grey.
func safeColor(c string) string {
	c = strings.TrimSpace(c)
	if (len(c) == 4 || len(c) == 7) && c[0] == '#' {
		if _, err := hex.DecodeString(padHex(c[1:])); err == nil {
			return c
		}
	}
	return "#696868"
}

func padHex(s string) string {
	if len(s) == 3 {
		return string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	return s
}

// sanitizeInput removes control characters other than tab and newlines.
// Whitespace is kept: a trailing space is part of a name prefix.
func sanitizeInput(s string) string {
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
