// Copyright 2026 MadSpark Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config loads MadSpark's typed configuration.

# Overview

Every knob the orchestrator spec enumerates lives here as a typed field,
never an untyped map: temperature profile, per-agent retry policy, the
workflow deadline, concurrency limits, cache settings, novelty thresholds,
multi-dimensional weights, the logical-inference confidence floor, and
mock_mode. Values are merged default -> YAML file -> environment variable,
in that order, via the loader's Builder chain:

	cfg, err := config.NewLoader().
		WithConfigPath("madspark.yaml").
		WithEnvPrefix("MADSPARK").
		Load()
*/
package config
