package app

import "github.com/charmbracelet/lipgloss"

const (
	chatBubblePaddingVertical   = 0
	chatBubblePaddingHorizontal = 1
)

var (
	headerStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activityStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	dividerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	userLabelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	agentLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	userBubbleStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(lipgloss.Color("236")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	agentBubbleStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	reasoningBubbleStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("244")).Faint(true).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	errorBubbleStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("160")).Foreground(lipgloss.Color("203")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	chatMetaStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	statusInfoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	statusWarningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("179"))
	statusErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// bubbleFrameWidth is the horizontal space a bubble's border and padding take.
func bubbleFrameWidth() int {
	return 2 + 2*chatBubblePaddingHorizontal
}
