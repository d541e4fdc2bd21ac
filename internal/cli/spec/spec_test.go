package spec

import "testing"

func TestLoadDefaultSpec(t *testing.T) {
	spec, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() err=%v", err)
	}
	if spec.App.Name == "" {
		t.Fatalf("expected app name set")
	}
	if len(spec.Commands) == 0 {
		t.Fatalf("expected commands")
	}
}

func TestDefaultSpecCoversCommandSet(t *testing.T) {
	specDoc, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	want := map[string]string{
		"create":       "panel.create",
		"rename":       "panel.rename",
		"delete":       "panel.delete",
		"set-commands": "panel.set_commands",
		"list":         "panel.list",
		"goto":         "nav.goto",
		"next":         "nav.next",
		"prev":         "nav.prev",
		"persist":      "store.persist",
		"restore":      "store.restore",
		"watch":        "store.watch",
		"version":      "version",
	}
	for name, id := range want {
		cmd := specDoc.FindByID(id)
		if cmd == nil {
			t.Fatalf("missing command %s", id)
		}
		if cmd.Name != name {
			t.Fatalf("%s name=%q want %q", id, cmd.Name, name)
		}
	}
	if len(specDoc.AllCommands()) != len(want) {
		t.Fatalf("commands=%d want %d", len(specDoc.AllCommands()), len(want))
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := Validate([]byte("")); err == nil {
		t.Fatalf("expected error for empty spec")
	}
	if _, err := Parse([]byte("  \n")); err == nil {
		t.Fatalf("expected error for blank spec")
	}
}

func TestValidateRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing app name": "version: 1\napp: {summary: x}\ncommands: [{name: a, id: a, summary: x}]\n",
		"no commands":      "version: 1\napp: {name: x, summary: x}\ncommands: []\n",
		"bad flag type":    "version: 1\napp: {name: x, summary: x}\ncommands: [{name: a, id: a, summary: x, flags: [{name: f, type: map}]}]\n",
		"enum without values": "version: 1\napp: {name: x, summary: x}\n" +
			"commands: [{name: a, id: a, summary: x, flags: [{name: f, type: enum}]}]\n",
		"unknown field": "version: 1\napp: {name: x, summary: x}\ncommands: [{name: a, id: a, summary: x, confirm: true}]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestFindByIDUnknown(t *testing.T) {
	specDoc := &Spec{Commands: []Command{
		{Name: "outer", ID: "outer", Subcommands: []Command{{Name: "inner", ID: "outer.inner"}}},
	}}
	if specDoc.FindByID("outer.inner") == nil {
		t.Fatalf("expected nested command")
	}
	if specDoc.FindByID(" ") != nil || specDoc.FindByID("missing") != nil {
		t.Fatalf("unexpected match")
	}
	var nilSpec *Spec
	if nilSpec.FindByID("outer") != nil || nilSpec.AllCommands() != nil {
		t.Fatalf("nil spec should be empty")
	}
}

func TestParseRejectsInconsistentTables(t *testing.T) {
	head := "version: 1\napp: {name: x, summary: x}\n"
	cases := map[string]string{
		"duplicate id": head + "commands: [{name: a, id: a, summary: x}, {name: b, id: a, summary: x}]\n",
		"alias clash":  head + "commands: [{name: a, id: a, summary: x}, {name: b, id: b, summary: x, aliases: [a]}]\n",
		"shadows global": head + "global_flags: [{name: json, type: bool}]\n" +
			"commands: [{name: a, id: a, summary: x, flags: [{name: json, type: bool}]}]\n",
		"constraint field": head + "commands: [{name: a, id: a, summary: x, flags: [{name: f, type: bool}]," +
			" constraints: [{type: exactly_one, fields: [f, g]}]}]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
