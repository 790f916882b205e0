// Package analysis inspects a finished trajectory:
//
//   - [Analyze]: uniform resampling, power spectrum and dominant frequency
//     of one position channel
//   - [Project]: a planar projection of the body1 path, renderable with
//     [ProjectionToASCII]
//   - [Crossings]: upward threshold crossings of a channel, from which
//     [Period] estimates the oscillation period
//
// A spring-damper trajectory settles to a damped oscillation, so its
// dominant frequency sits near the undamped natural frequency:
//
//	sp, err := analysis.Analyze(traj, analysis.AxisZ, 256)
//	fmt.Println(sp.Dominant) // ~ sqrt(c/m) / 2π
package analysis
