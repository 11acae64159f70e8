// Package mock provides func-field test doubles for pkg/domain/interfaces in
// the shape moq generates. Calling a method whose func is nil panics.
package mock
