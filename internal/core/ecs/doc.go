// Package ecs is a small sparse-set entity registry. Entities are generation-tagged
// handles; components are plain values stored per Go type and accessed through the
// generic SetComponent/GetComponent/HasComponent/RemoveComponent helpers.
package ecs
