package main

import "github.com/charmbracelet/lipgloss"

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

func keyword(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true).Render(s)
}
