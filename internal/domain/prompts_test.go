package domain

import "testing"

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Callback
		ok   bool
	}{
		{name: "done", data: CallbackData(ActionDone, 42), want: Callback{Action: ActionDone, ID: 42}, ok: true},
		{name: "snooze with arg", data: CallbackData(ActionSnooze, 7, SnoozeTomorrow), want: Callback{Action: ActionSnooze, ID: 7, Arg: SnoozeTomorrow}, ok: true},
		{name: "undo token", data: UndoData("9f0c"), want: Callback{Action: ActionUndo, Arg: "9f0c"}, ok: true},
		{name: "empty", data: "", ok: false},
		{name: "no id", data: "done:", ok: false},
		{name: "bad id", data: "done:abc", ok: false},
		{name: "zero id", data: "del:0", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCallback(tt.data)
			if ok != tt.ok {
				t.Fatalf("ParseCallback(%q) ok = %v, want %v", tt.data, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("ParseCallback(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	for _, rows := range [][][]Prompt{ReminderPrompts(1<<62 - 1), SnoozePrompts(1<<62 - 1)} {
		for _, row := range rows {
			for _, p := range row {
				if len(p.Data) > 64 {
					t.Fatalf("callback data %q длиннее 64 байт", p.Data)
				}
			}
		}
	}
}

func TestReminderOwnedBy(t *testing.T) {
	author := int64(5)
	r := Reminder{ChatID: 100, CreatedBy: &author}
	if !r.OwnedBy(100, 1) {
		t.Fatalf("участник чата должен управлять напоминанием")
	}
	if !r.OwnedBy(200, 5) {
		t.Fatalf("автор должен управлять напоминанием из лички")
	}
	if r.OwnedBy(200, 6) {
		t.Fatalf("посторонний не должен управлять напоминанием")
	}
}

func TestWeeklySubsetNormalizes(t *testing.T) {
	p := WeeklySubset(5, 1, 1, 3)
	if len(p.Weekdays) != 3 || p.Weekdays[0] != 1 || p.Weekdays[2] != 5 {
		t.Fatalf("ожидали отсортированные дни без повторов, получили %v", p.Weekdays)
	}
	sun := WeeklySubset(0, 6)
	if sun.Weekdays[0] != 6 || sun.Weekdays[1] != 0 {
		t.Fatalf("неделя начинается с понедельника: %v", sun.Weekdays)
	}
}
