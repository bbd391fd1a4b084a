// Package monitor runs the read loop that turns key events into dispatched
// chords.
//
// A Monitor owns its pressed-key tracker and its dispatcher, and shares the
// binding registry and reflector with every other monitor in the process:
//
//	reg := keymap.NewRegistry()
//	refl := keymap.NewReflector()
//	hub := monitor.NewHub()
//
//	m := monitor.New(src, reg, refl, monitor.WithHub(hub))
//	go m.Run(ctx)
//	...
//	hub.StopAll(ctx)
//
// # Lifecycle
//
// A monitor moves through Created, Running, Stopping and Stopped. Run blocks
// until Shutdown is called, its context ends, or the source reports io.EOF.
// Before Run returns, the monitor stops accepting chords and waits for every
// dispatch unit it started. Stop calls Shutdown and waits for that to finish.
// A stopped monitor can be run again; it starts with no keys held.
//
// Callbacks receive the monitor as a keymap.Monitor and may call Shutdown,
// which never blocks.
package monitor
