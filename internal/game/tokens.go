package game

import (
	"fmt"
	"math/rand/v2"
)

var tokenAnimals = []string{
	"lion", "tiger", "bear", "fox", "wolf", "panda", "koala", "zebra", "giraffe", "monkey",
	"cat", "dog", "mouse", "eagle", "owl", "shark", "whale", "dolphin", "rabbit", "frog",
	"horse", "sheep", "goat", "pig", "deer", "bat", "duck", "swan", "crab", "crow",
	"bee", "ant", "moose", "lynx", "otter", "camel", "yak", "mole", "elk",
}

// randomToken returns a join token such as "otter07".
func randomToken() string {
	animal := tokenAnimals[rand.IntN(len(tokenAnimals))]
	return fmt.Sprintf("%s%02d", animal, rand.IntN(100))
}
