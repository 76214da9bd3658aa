// Package adcp converts acoustic Doppler current profiler velocities between
// the instrument's BEAM frame and the earth-fixed ENU frame.
//
// Responsibilities: parsing the calibration header, building the calibration
// matrix, composing per-timestamp rotation matrices from heading, pitch and
// roll, and applying them (or their inverses) to every cell of every sample.
// Key types: InstrumentConfig, AttitudeSample, VelocitySample, Engine.
//
// The package performs no file I/O beyond the io.Reader handed to
// ParseHeader; reading instrument files and writing results belongs to
// internal/aquadopp and internal/pipeline.
package adcp
