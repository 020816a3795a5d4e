package monitor

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	darkBackground  = color.NRGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff}
	darkButton      = color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	lightBackground = color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
)

// variantTheme pins the default theme to one variant regardless of the OS
// preference.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func newVariantTheme(dark bool) *variantTheme {
	variant := theme.VariantLight
	if dark {
		variant = theme.VariantDark
	}
	return &variantTheme{Theme: theme.DefaultTheme(), variant: variant}
}

func (t *variantTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		if t.variant == theme.VariantDark {
			return darkBackground
		}
		return lightBackground
	case theme.ColorNameButton:
		if t.variant == theme.VariantDark {
			return darkButton
		}
	}
	return t.Theme.Color(name, t.variant)
}
