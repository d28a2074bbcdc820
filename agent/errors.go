// Copyright 2025 Poiesic Systems
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


package agent

import "errors"

var (
	// ErrEmptyQuestion is returned when a turn is asked with a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptySession is returned when a turn has no session id.
	ErrEmptySession = errors.New("session id cannot be empty")

	// ErrInvalidMaxToolCalls indicates a tool budget below one.
	ErrInvalidMaxToolCalls = errors.New("max tool calls must be greater than 0")
)
