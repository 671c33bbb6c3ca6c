// Package world provides in-process implementations of everything a nest box
// talks to outside itself: the calendar, live creatures, land claims, player
// inventories, the item and species catalog, the spawner, the point of
// interest registry and positional sounds. The simulator and the admin server
// run on these; a game host would supply its own.
package world
