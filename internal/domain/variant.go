package domain

import (
	"sort"
	"strings"
)

// DeliveryType is the top-level ticket kind chosen on the panel.
type DeliveryType string

const (
	DeliveryRobux DeliveryType = "Robux"
	DeliveryOther DeliveryType = "Other"
)

// Kind identifies a ticket subtype. Other tickets carry KindOther.
type Kind string

const (
	KindGamepass   Kind = "gamepass"
	KindGroupFunds Kind = "groupfunds"
	KindInGame     Kind = "ingame"
	KindOther      Kind = "other"
)

// CategoryKey names a configured group of category channels.
type CategoryKey string

const (
	CategoryGamepass        CategoryKey = "robux_gamepass"
	CategoryGroupFunds      CategoryKey = "robux_groupfunds"
	CategoryInGame          CategoryKey = "robux_ingame"
	CategoryOther           CategoryKey = "other"
	CategoryNeedsGamepass   CategoryKey = "needs_gamepass"
	CategoryNeedsGroupFunds CategoryKey = "needs_groupfunds"
	CategoryNeedsInGame     CategoryKey = "needs_ingame"
)

// Instruction is the message posted when a ticket is confirmed. Plain
// instructions are sent as bare text instead of an embed.
type Instruction struct {
	Plain string
	Title string
	Body  string
	Color int
}

// Variant describes everything the lifecycle needs to know about a subtype.
type Variant struct {
	Kind            Kind
	Label           string
	Description     string
	Delivery        DeliveryType
	CreateCategory  CategoryKey
	ConfirmCategory CategoryKey
	Confirmation    Instruction
	Priced          bool
}

var variants = map[Kind]Variant{
	KindGamepass: {
		Kind:            KindGamepass,
		Label:           "Gamepass",
		Description:     "Robux delivered through a gamepass purchase",
		Delivery:        DeliveryRobux,
		CreateCategory:  CategoryGamepass,
		ConfirmCategory: CategoryNeedsGamepass,
		Priced:          true,
		Confirmation: Instruction{
			Title: "Gamepass Purchase Details Required",
			Body: "Please send the following:\n\n" +
				"• Gamepass link(s)\n" +
				"• Price of each gamepass\n" +
				"• Example:\n" +
				"https://www.roblox.com/game-pass/1016516725/unnamed\n" +
				"44286",
			Color: 0x2ecc71,
		},
	},
	KindGroupFunds: {
		Kind:            KindGroupFunds,
		Label:           "Group Funds",
		Description:     "Robux paid out from group funds",
		Delivery:        DeliveryRobux,
		CreateCategory:  CategoryGroupFunds,
		ConfirmCategory: CategoryNeedsGroupFunds,
		Priced:          true,
		Confirmation: Instruction{
			Title: "Group Funds Details Required",
			Body: "Please provide us with the following:\n\n" +
				"(Username) - (Amount) - Group Funds\n\n" +
				"**Example:**\n`xAriefyk - 1000 - Group Funds`\n" +
				"FOLLOW THE EXAMPLE CLOSELY",
			Color: 0x3498db,
		},
	},
	KindInGame: {
		Kind:            KindInGame,
		Label:           "In-game",
		Description:     "Robux spent on in-game items",
		Delivery:        DeliveryRobux,
		CreateCategory:  CategoryInGame,
		ConfirmCategory: CategoryNeedsInGame,
		Priced:          true,
		Confirmation:    Instruction{Plain: ".igg"},
	},
	KindOther: {
		Kind:           KindOther,
		Label:          "Other",
		Description:    "Anything else",
		Delivery:       DeliveryOther,
		CreateCategory: CategoryOther,
	},
}

// VariantOf looks up a subtype, case-insensitively.
func VariantOf(kind Kind) (Variant, bool) {
	v, ok := variants[Kind(strings.ToLower(strings.TrimSpace(string(kind))))]
	return v, ok
}

// PricedKinds lists the subtypes that carry a unit price, sorted.
func PricedKinds() []Kind {
	kinds := make([]Kind, 0, len(variants))
	for kind, v := range variants {
		if v.Priced {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
