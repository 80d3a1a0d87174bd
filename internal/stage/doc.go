// Package stage runs one pipeline component per process.
//
// A component connects to its channels once and then handles one sample per
// Process call. Run supervises the loop, the signal driven shutdown and any
// side services such as the diagnostics server with a single tomb:
//
//	env, err := stage.NewEnv("posidet", cfg)
//	...
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err = stage.Run(ctx, det, env.RunOptions("raw", "pos")...)
package stage
