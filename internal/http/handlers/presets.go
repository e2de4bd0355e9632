package handlers

import "net/http"

// PresetsList returns the names of the loaded generation configurations.
func (a *App) PresetsList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Presets.Names()})
}
