package wrappers

import (
	"context"

	"github.com/user/gosec-posture/pkg/inventory"
)

// InventoryWrapper implements the Tool interface for the host inventory.
type InventoryWrapper struct {
	Collect func(ctx context.Context) (inventory.Inventory, error)
}

func (i *InventoryWrapper) Name() string {
	return "ShowInventory"
}

func (i *InventoryWrapper) Description() string {
	return "Describes this machine: hostname, OS and kernel, CPU, memory, disks with usage and network interfaces with addresses."
}

func (i *InventoryWrapper) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (i *InventoryWrapper) Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	if progress != nil {
		progress("Collecting host inventory...")
	}
	inv, err := i.Collect(ctx)
	if err != nil {
		return "", err
	}
	return inv.Report(), nil
}
