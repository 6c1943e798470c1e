// Package namegen derives the public pseudonym of a user from their id.
//
// The mapping is a pure function: the same id always yields the same name, on
// every server, with no stored state. Posts and comments store the name they
// were written with, so changing the word lists only affects new content.
package namegen

import "unicode/utf16"

var adjectives = [...]string{
	"Silent", "Green", "Ancient", "Brave", "Calm", "Rapid", "Bright", "Daring", "Eager", "Fierce",
	"Gentle", "Happy", "Jolly", "Kind", "Lively", "Misty", "Noble", "Proud", "Quiet", "Royal",
	"Shiny", "Tough", "Urban", "Vivid", "Wild", "Young", "Zealous", "Sunny", "Windy", "Snowy",
}

var animals = [...]string{
	"Tiger", "Owl", "Bear", "Lion", "Wolf", "Fox", "Eagle", "Hawk", "Falcon", "Deer",
	"Panda", "Koala", "Leopard", "Cheetah", "Elephant", "Giraffe", "Zebra", "Horse", "Raven", "Crow",
	"Swan", "Duck", "Goose", "Penguin", "Seal", "Whale", "Dolphin", "Shark", "Crab", "Dragon",
}

// Derive returns "<Adjective> <Animal>" for userID.
//
// The hash runs over UTF-16 code units with 32-bit shift semantics, so names
// match the ones the web client has always shown for existing accounts.
func Derive(userID string) string {
	var hash int64
	for _, unit := range utf16.Encode([]rune(userID)) {
		shifted := int64(int32(uint32(hash) << 5))
		hash = int64(unit) + shifted - hash
	}

	adj := abs(hash) % int64(len(adjectives))
	animal := abs(int64(int32(uint32(hash))>>5)) % int64(len(animals))
	return adjectives[adj] + " " + animals[animal]
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
