package enginegrpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// The engine's cline.* messages are described at runtime so the client and
// the mock engine share one wire shape without generated stubs. Field
// numbers follow the engine's common.proto, task.proto and state.proto.

const clinePackage = "cline"

// PlanActMode enum numbers.
const (
	planActModePlan protoreflect.EnumNumber = 0
	planActModeAct  protoreflect.EnumNumber = 1
)

var clineFile = mustBuildClineFile()

var (
	metadataDesc             = mustMessage("Metadata")
	emptyRequestDesc         = mustMessage("EmptyRequest")
	stringDesc               = mustMessage("String")
	booleanDesc              = mustMessage("Boolean")
	stateDesc                = mustMessage("State")
	autoApprovalActionsDesc  = mustMessage("AutoApprovalActions")
	autoApprovalSettingsDesc = mustMessage("AutoApprovalSettings")
	settingsDesc             = mustMessage("Settings")
	newTaskRequestDesc       = mustMessage("NewTaskRequest")
	toggleRequestDesc        = mustMessage("TogglePlanActModeRequest")
)

func mustBuildClineFile() protoreflect.FileDescriptor {
	const (
		typeBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		typeInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
		typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
		typeEnum   = descriptorpb.FieldDescriptorProto_TYPE_ENUM
		typeMsg    = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	)
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("cline/taskstream.proto"),
		Package: proto.String(clinePackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("PlanActMode"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("PLAN"), Number: proto.Int32(int32(planActModePlan))},
				{Name: proto.String("ACT"), Number: proto.Int32(int32(planActModeAct))},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			messageProto("Metadata"),
			messageProto("EmptyRequest", fieldProto("metadata", 1, typeMsg, "Metadata")),
			messageProto("String", fieldProto("value", 1, typeString, "")),
			messageProto("Boolean", fieldProto("value", 1, typeBool, "")),
			messageProto("State", fieldProto("state_json", 1, typeString, "")),
			messageProto("AutoApprovalActions",
				fieldProto("read_files", 1, typeBool, ""),
				fieldProto("read_files_externally", 2, typeBool, ""),
				fieldProto("edit_files", 3, typeBool, ""),
				fieldProto("edit_files_externally", 4, typeBool, ""),
				fieldProto("execute_safe_commands", 5, typeBool, ""),
				fieldProto("execute_all_commands", 6, typeBool, ""),
				fieldProto("use_browser", 7, typeBool, ""),
				fieldProto("use_mcp", 8, typeBool, ""),
			),
			messageProto("AutoApprovalSettings",
				fieldProto("version", 1, typeInt32, ""),
				fieldProto("enabled", 2, typeBool, ""),
				fieldProto("actions", 3, typeMsg, "AutoApprovalActions"),
				fieldProto("max_requests", 4, typeInt32, ""),
				fieldProto("enable_notifications", 5, typeBool, ""),
			),
			messageProto("Settings",
				fieldProto("auto_approval_settings", 1, typeMsg, "AutoApprovalSettings"),
				fieldProto("mode", 2, typeEnum, "PlanActMode"),
			),
			messageProto("NewTaskRequest",
				fieldProto("metadata", 1, typeMsg, "Metadata"),
				fieldProto("text", 2, typeString, ""),
				repeatedField(fieldProto("images", 3, typeString, "")),
				repeatedField(fieldProto("files", 4, typeString, "")),
				fieldProto("task_settings", 5, typeMsg, "Settings"),
			),
			messageProto("TogglePlanActModeRequest",
				fieldProto("metadata", 1, typeMsg, "Metadata"),
				fieldProto("mode", 2, typeEnum, "PlanActMode"),
			),
		},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		panic(fmt.Sprintf("enginegrpc: build cline descriptors: %v", err))
	}
	return fd
}

func messageProto(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func fieldProto(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String("." + clinePackage + "." + typeName)
	}
	return f
}

func repeatedField(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func mustMessage(name protoreflect.Name) protoreflect.MessageDescriptor {
	md := clineFile.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("enginegrpc: missing message %s.%s", clinePackage, name))
	}
	return md
}

func newMessage(md protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(md)
}

// withMetadata returns a new message of md with an empty metadata field set,
// the way the engine's own clients send it.
func withMetadata(md protoreflect.MessageDescriptor) *dynamicpb.Message {
	msg := newMessage(md)
	msg.Set(md.Fields().ByName("metadata"), protoreflect.ValueOfMessage(newMessage(metadataDesc)))
	return msg
}

func setString(msg *dynamicpb.Message, name protoreflect.Name, value string) {
	msg.Set(msg.Descriptor().Fields().ByName(name), protoreflect.ValueOfString(value))
}

func getString(msg protoreflect.ProtoMessage, name protoreflect.Name) string {
	m := msg.ProtoReflect()
	return m.Get(m.Descriptor().Fields().ByName(name)).String()
}

func setBool(msg *dynamicpb.Message, name protoreflect.Name, value bool) {
	msg.Set(msg.Descriptor().Fields().ByName(name), protoreflect.ValueOfBool(value))
}

func getBool(msg protoreflect.ProtoMessage, name protoreflect.Name) bool {
	m := msg.ProtoReflect()
	return m.Get(m.Descriptor().Fields().ByName(name)).Bool()
}

// stringValue builds a cline.String reply.
func stringValue(value string) *dynamicpb.Message {
	msg := newMessage(stringDesc)
	setString(msg, "value", value)
	return msg
}

// booleanValue builds a cline.Boolean reply.
func booleanValue(value bool) *dynamicpb.Message {
	msg := newMessage(booleanDesc)
	setBool(msg, "value", value)
	return msg
}

// stateValue builds a cline.State update.
func stateValue(stateJSON []byte) *dynamicpb.Message {
	msg := newMessage(stateDesc)
	setString(msg, "state_json", string(stateJSON))
	return msg
}
