package enginegrpc

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"pkt.systems/taskstream/schema"
)

func toPBMode(mode schema.Mode) (protoreflect.EnumNumber, error) {
	switch mode {
	case schema.ModePlan:
		return planActModePlan, nil
	case schema.ModeAct:
		return planActModeAct, nil
	default:
		return 0, fmt.Errorf("%w %q", schema.ErrInvalidMode, mode)
	}
}

func fromPBMode(n protoreflect.EnumNumber) (schema.Mode, error) {
	switch n {
	case planActModePlan:
		return schema.ModePlan, nil
	case planActModeAct:
		return schema.ModeAct, nil
	default:
		return "", fmt.Errorf("%w: enum value %d", schema.ErrInvalidMode, n)
	}
}

func toPBTaskRequest(req schema.TaskRequest) (*dynamicpb.Message, error) {
	mode, err := toPBMode(req.Settings.Mode)
	if err != nil {
		return nil, err
	}
	approval := req.Settings.AutoApproval
	actions := newMessage(autoApprovalActionsDesc)
	setBool(actions, "read_files", approval.Actions.ReadFiles)
	setBool(actions, "read_files_externally", approval.Actions.ReadFilesExternally)
	setBool(actions, "edit_files", approval.Actions.EditFiles)
	setBool(actions, "edit_files_externally", approval.Actions.EditFilesExternally)
	setBool(actions, "execute_safe_commands", approval.Actions.ExecuteSafeCommands)
	setBool(actions, "execute_all_commands", approval.Actions.ExecuteAllCommands)
	setBool(actions, "use_browser", approval.Actions.UseBrowser)
	setBool(actions, "use_mcp", approval.Actions.UseMCP)

	approvalMsg := newMessage(autoApprovalSettingsDesc)
	setBool(approvalMsg, "enabled", approval.Enabled)
	approvalMsg.Set(autoApprovalSettingsDesc.Fields().ByName("max_requests"), protoreflect.ValueOfInt32(int32(approval.MaxRequests)))
	approvalMsg.Set(autoApprovalSettingsDesc.Fields().ByName("actions"), protoreflect.ValueOfMessage(actions))

	settings := newMessage(settingsDesc)
	settings.Set(settingsDesc.Fields().ByName("auto_approval_settings"), protoreflect.ValueOfMessage(approvalMsg))
	settings.Set(settingsDesc.Fields().ByName("mode"), protoreflect.ValueOfEnum(mode))

	out := withMetadata(newTaskRequestDesc)
	setString(out, "text", req.Text)
	out.Set(newTaskRequestDesc.Fields().ByName("task_settings"), protoreflect.ValueOfMessage(settings))
	return out, nil
}

func fromPBTaskRequest(in protoreflect.ProtoMessage) (schema.TaskRequest, error) {
	if in == nil {
		return schema.TaskRequest{}, fmt.Errorf("%w: empty request", schema.ErrInvalidRequest)
	}
	msg := in.ProtoReflect()
	if msg.Descriptor().FullName() != newTaskRequestDesc.FullName() {
		return schema.TaskRequest{}, fmt.Errorf("%w: unexpected message %s", schema.ErrInvalidRequest, msg.Descriptor().FullName())
	}
	req := schema.TaskRequest{Text: getString(in, "text")}
	if req.Text == "" {
		return schema.TaskRequest{}, fmt.Errorf("%w: text is required", schema.ErrInvalidRequest)
	}

	settings := msg.Get(newTaskRequestDesc.Fields().ByName("task_settings")).Message()
	mode, err := fromPBMode(settings.Get(settingsDesc.Fields().ByName("mode")).Enum())
	if err != nil {
		return schema.TaskRequest{}, fmt.Errorf("%w: %w", schema.ErrInvalidRequest, err)
	}
	req.Settings.Mode = mode

	approval := settings.Get(settingsDesc.Fields().ByName("auto_approval_settings")).Message()
	approvalFields := autoApprovalSettingsDesc.Fields()
	req.Settings.AutoApproval.Enabled = approval.Get(approvalFields.ByName("enabled")).Bool()
	req.Settings.AutoApproval.MaxRequests = int(approval.Get(approvalFields.ByName("max_requests")).Int())

	actions := approval.Get(approvalFields.ByName("actions")).Message()
	flag := func(name protoreflect.Name) bool {
		return actions.Get(autoApprovalActionsDesc.Fields().ByName(name)).Bool()
	}
	req.Settings.AutoApproval.Actions = schema.ApprovalActions{
		ReadFiles:           flag("read_files"),
		ReadFilesExternally: flag("read_files_externally"),
		EditFiles:           flag("edit_files"),
		EditFilesExternally: flag("edit_files_externally"),
		ExecuteSafeCommands: flag("execute_safe_commands"),
		ExecuteAllCommands:  flag("execute_all_commands"),
		UseBrowser:          flag("use_browser"),
		UseMCP:              flag("use_mcp"),
	}
	return req, nil
}

func toPBToggleRequest(mode schema.Mode) (*dynamicpb.Message, error) {
	n, err := toPBMode(mode)
	if err != nil {
		return nil, err
	}
	out := withMetadata(toggleRequestDesc)
	out.Set(toggleRequestDesc.Fields().ByName("mode"), protoreflect.ValueOfEnum(n))
	return out, nil
}

func fromPBToggleRequest(in protoreflect.ProtoMessage) (schema.Mode, error) {
	if in == nil {
		return "", fmt.Errorf("%w: empty request", schema.ErrInvalidRequest)
	}
	msg := in.ProtoReflect()
	if msg.Descriptor().FullName() != toggleRequestDesc.FullName() {
		return "", fmt.Errorf("%w: unexpected message %s", schema.ErrInvalidRequest, msg.Descriptor().FullName())
	}
	return fromPBMode(msg.Get(toggleRequestDesc.Fields().ByName("mode")).Enum())
}
