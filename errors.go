// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specbind

import "errors"

// Configuration errors (returned by New and Bind).
var (
	// ErrRouterRequired indicates Bind was called with a nil router.
	ErrRouterRequired = errors.New("specbind: router is required")

	// ErrSpecRequired indicates no specification source was configured.
	ErrSpecRequired = errors.New("specbind: specification is required")

	// ErrServiceRequired indicates no service was configured, or the
	// service provider produced nil.
	ErrServiceRequired = errors.New("specbind: service is required")

	// ErrPublicKeyRequired indicates token checking is enabled, at least
	// one route declares auth types, and no verification key or custom
	// verifier was configured.
	ErrPublicKeyRequired = errors.New("specbind: public key is required for routes that declare auth types")
)
