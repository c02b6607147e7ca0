package names

var adjectives = []string{
	"able", "amber", "ancient", "angry", "arctic", "bold", "brave", "bright",
	"brisk", "calm", "careful", "clever", "cosmic", "crimson", "curious", "daring",
	"dizzy", "eager", "early", "electric", "fancy", "fierce", "fluffy", "gentle",
	"giant", "golden", "grumpy", "happy", "hidden", "humble", "icy", "jolly",
	"kind", "lazy", "lively", "lucky", "mellow", "mighty", "misty", "modest",
	"noble", "odd", "patient", "polite", "proud", "quick", "quiet", "rapid",
	"rustic", "shy", "silent", "silver", "sleepy", "sneaky", "solar", "steady",
	"swift", "tidy", "tiny", "vivid", "wandering", "wise", "witty", "zealous",
}

var animals = []string{
	"albatross", "alpaca", "badger", "bat", "bear", "beaver", "bison", "camel",
	"cheetah", "cobra", "crab", "crane", "crow", "deer", "dolphin", "donkey",
	"eagle", "eel", "falcon", "ferret", "finch", "fox", "gecko", "gibbon",
	"goat", "gorilla", "hare", "hawk", "hedgehog", "heron", "ibis", "jackal",
	"jaguar", "koala", "lemur", "leopard", "lion", "llama", "lynx", "marmot",
	"meerkat", "mole", "moose", "newt", "octopus", "otter", "owl", "panda",
	"parrot", "pelican", "penguin", "puffin", "rabbit", "raven", "salmon", "seal",
	"sloth", "sparrow", "squid", "swan", "tiger", "toad", "walrus", "wombat",
}
