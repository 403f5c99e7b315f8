// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"citation-validator/pkg/registry"
)

var registryPath string

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{initCmd, addCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/panel-registry.json", "Path to registry file")
	}

	// Add command flags
	idAdd := addCmd.String("id", "", "Persona ID (e.g., authority-validator)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Authority Validator)")
	description := addCmd.String("description", "", "Description")
	tier := addCmd.String("tier", registry.TierTier2, "Panel tier (tier2, tier3)")
	prompt := addCmd.String("prompt", "", "Persona instructions sent as the system prompt")
	disabled := addCmd.Bool("disabled", false, "Add the persona without seating it on its panel")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Persona ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, tier, prompt, enabled)")
	value := updateCmd.String("value", "", "New value for the field")

	force := initCmd.Bool("force", false, "Overwrite an existing registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		if err := initRegistry(*force); err != nil {
			fmt.Printf("Error writing registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in panel registry to %s\n", registryPath)

	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *prompt == "" {
			fmt.Println("Error: id, displayName and prompt are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		persona := registry.Persona{
			ID:          *idAdd,
			DisplayName: *displayName,
			Description: *description,
			Tier:        *tier,
			Prompt:      *prompt,
		}
		if *disabled {
			off := false
			persona.Enabled = &off
		}
		if err := addPersona(&persona); err != nil {
			fmt.Printf("Error adding persona: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added persona: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updatePersona(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating persona: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated persona %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Tier 2 panel: %d, Tier 3 panel: %d.\n",
			len(reg.Panel(registry.TierTier2)), len(reg.Panel(registry.TierTier3)))

	case "help":
		fallthrough
	default:
		help()
	}
}

func initRegistry(force bool) error {
	if _, err := os.Stat(registryPath); err == nil && !force {
		return fmt.Errorf("%s already exists, use -force to overwrite", registryPath)
	}
	reg := registry.Default()
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

// loadUnchecked reads the registry without enforcing panel sizes, so a panel
// can be rebuilt one persona at a time.
func loadUnchecked(path string) (*registry.PanelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg registry.PanelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

func addPersona(persona *registry.Persona) error {
	if persona.Tier != registry.TierTier2 && persona.Tier != registry.TierTier3 {
		return fmt.Errorf("unknown tier %q", persona.Tier)
	}

	reg, err := loadUnchecked(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.PanelRegistry{Version: "1.0.0"}
	}

	for _, existing := range reg.Personas {
		if existing.ID == persona.ID {
			return fmt.Errorf("persona with ID %s already exists", persona.ID)
		}
	}

	reg.Personas = append(reg.Personas, *persona)
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

func updatePersona(id, field, value string) error {
	reg, err := loadUnchecked(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Personas {
		if reg.Personas[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "displayName":
			reg.Personas[i].DisplayName = value
		case "description":
			reg.Personas[i].Description = value
		case "prompt":
			reg.Personas[i].Prompt = value
		case "tier":
			if value != registry.TierTier2 && value != registry.TierTier3 {
				return fmt.Errorf("unknown tier %q", value)
			}
			reg.Personas[i].Tier = value
		case "enabled":
			on, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid enabled value: %w", err)
			}
			reg.Personas[i].Enabled = &on
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("persona with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.PanelRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	if err := reg.Validate(); err != nil {
		fmt.Printf("Warning: registry saved but not loadable yet: %v\n", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  init     Write the built-in panel registry to a file
  add      Add a persona to a panel
  update   Update an existing persona's field
  validate Validate the registry file (unique ids, fixed panel sizes)
  help     Show this help message

Examples:
  registry-updater init -path configs/panel-registry.json
  registry-updater add -id citation-format-checker -displayName "Citation Format Checker" -tier tier2 -prompt "..." -disabled
  registry-updater update -id temporal-validator -field enabled -value false
  registry-updater validate -path configs/panel-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
