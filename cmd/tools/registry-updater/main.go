// cmd/tools/registry-updater/main.go
//
// Maintenance CLI for the template registry consumed by the mock backend.
// Supports adding a template, updating a field and validating the file
// before deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"sms-composer/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Template ID (e.g., internet-pass-data)")
	family := addCmd.String("family", "", "Campaign family (e.g., USAGE_Internet, or __ALL__)")
	persona := addCmd.String("persona", "", "Persona (e.g., PROFIL_Internet, or __ALL__)")
	selector := addCmd.String("selector", "", "CTA short code or handset brand (or __DEFAULT__)")
	variants := addCmd.String("variants", "", "Rotation variants, separated by |")
	tags := addCmd.String("tags", "", "Comma-separated tags")
	addCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Template ID to update")
	field := updateCmd.String("field", "", "Field to update (family, persona, selector, variants, tags)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *family == "" || *persona == "" || *selector == "" || *variants == "" {
			fmt.Println("Error: id, family, persona, selector, and variants are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		template := registry.Template{
			ID:       *idAdd,
			Family:   *family,
			Persona:  *persona,
			Selector: *selector,
			Variants: splitList(*variants, "|"),
			Tags:     splitList(*tags, ","),
		}
		if err := addTemplate(&template); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTemplate(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated template %s, field %s\n", *idUpdate, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addTemplate(template *registry.Template) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, create new registry
		if os.IsNotExist(err) {
			reg = &registry.TemplateRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Templates:   []registry.Template{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	for _, existing := range reg.Templates {
		if existing.ID == template.ID {
			return fmt.Errorf("template with ID %s already exists", template.ID)
		}
	}

	reg.Templates = append(reg.Templates, *template)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	return saveRegistry(reg, registryPath)
}

func updateTemplate(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Templates {
		if reg.Templates[i].ID == id {
			found = true
			switch field {
			case "family":
				reg.Templates[i].Family = value
			case "persona":
				reg.Templates[i].Persona = value
			case "selector":
				reg.Templates[i].Selector = value
			case "variants":
				reg.Templates[i].Variants = splitList(value, "|")
			case "tags":
				reg.Templates[i].Tags = splitList(value, ",")
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("template with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

// literalDigits flags variants carrying their own numbers. Every number in a
// rendered message must come from a context placeholder, never from the
// template text.
var literalDigits = regexp.MustCompile(`[0-9]`)

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Templates) == 0 {
		return fmt.Errorf("registry contains no templates")
	}

	ids := make(map[string]bool)
	hasGlobalDefault := false
	for _, template := range reg.Templates {
		if template.ID == "" {
			return fmt.Errorf("template missing required field: ID")
		}
		if ids[template.ID] {
			return fmt.Errorf("duplicate template ID: %s", template.ID)
		}
		ids[template.ID] = true

		if template.Family == "" || template.Persona == "" || template.Selector == "" {
			return fmt.Errorf("template %s missing family, persona or selector", template.ID)
		}
		if len(template.Variants) == 0 {
			return fmt.Errorf("template %s has no variants", template.ID)
		}
		for i, variant := range template.Variants {
			if strings.TrimSpace(variant) == "" {
				return fmt.Errorf("template %s variant %d is empty", template.ID, i)
			}
			if literalDigits.MatchString(variant) {
				return fmt.Errorf("template %s variant %d carries literal digits", template.ID, i)
			}
		}

		if template.Family == registry.AnyFamily &&
			template.Persona == registry.AnyPersona &&
			template.Selector == registry.DefaultSelector {
			hasGlobalDefault = true
		}
	}

	if !hasGlobalDefault {
		return fmt.Errorf("registry has no global default template")
	}

	return nil
}

func saveRegistry(reg *registry.TemplateRegistry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

func splitList(value, sep string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func help() {
	fmt.Println(`Usage: registry-updater <command> [flags]

Commands:
  add       Add a new template to the registry
  update    Update a field of an existing template
  validate  Check the registry file for structural problems
  help      Show this message

Run 'registry-updater <command> -h' for command flags.`)
}
