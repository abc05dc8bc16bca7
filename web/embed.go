// Package web holds the mini-app page and its assets.
package web

import "embed"

// TemplatesFS embeds the mini-app page template.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the mini-app scripts and styles.
//
//go:embed static/*
var StaticFS embed.FS
