package web

import "embed"

// StaticFiles embeds the web/static directory (status page styles).
//
//go:embed static/*
var StaticFiles embed.FS
