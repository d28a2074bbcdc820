// Package mock provides test doubles for the ai package.
package mock
