// Package ui prints styled status lines and download progress to the
// terminal.
package ui
