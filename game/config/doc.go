// Package config loads maze chase levels and agent scripts from a level
// directory.
//
// Level Format:
//
// A level file (.lvl) starts with header lines followed by the map:
//
//	# comment
//	DIM 5 7          rows, columns
//	TEMPO 20         chaser tick in units of 10ms (0 uses the default tick)
//	PAC runner.p     runner script; omit for a keyboard controlled runner
//	MON a.m b.m      chaser scripts
//	XXXXXXX
//	Xo o oX
//	X  @  X
//
// Map characters: X wall, @ portal, o or 0 collectible, anything else floor.
// Short rows are padded with floor.
//
// Agent scripts contain optional PASSO and POS lines and a list of commands:
//
//	PASSO 1
//	POS 1 1          row, column
//	E E S T3 R C
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	names, _ := manager.Levels()
//	board, err := manager.Load(names[0], 0)
//
// Manager caches parsed files and is safe for concurrent use.
package config
